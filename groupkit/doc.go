// Package groupkit is the runtime for group processes started by an
// activation daemon.
//
// A group process is an ordinary program that calls Run(). Run() reads the
// bootstrap message written to the process's standard input by the daemon,
// serves an instantiator that constructs objects using the registered
// factories, and attaches that instantiator to the daemon.
package groupkit
