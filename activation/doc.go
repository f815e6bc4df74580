// Package activation defines the types shared by the activation daemon, its
// clients and the group processes that it spawns.
package activation
