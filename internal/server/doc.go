// Package server implements the real-time messaging relay: the connection
// registry, room membership, message routing, and presence broadcasting
// behind the WebSocket endpoint.
//
// The implementation is organized into specialized files for the protocol,
// registry, rooms, router, hub, clients, configuration, and HTTP wiring. All
// registry and room mutations are serialized through the hub's event loop;
// see hub.go for the concurrency model.
package server
