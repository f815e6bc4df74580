// Package api exposes the activation daemon's endpoints, and the instantiator
// endpoint of each group process, over gRPC.
//
// The services are described by hand rather than generated from protocol
// buffers definitions. Messages are encoded as JSON.
package api
