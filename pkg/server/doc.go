// Package server exposes named JSON stores over HTTP and WebSocket.
//
// A Registry holds the stores. Writable stores are created with Create
// (optionally persisted through a persist.Backend), read-only ones with
// AddReadable or AddFile. A Hub serves the registry:
//
//	reg := server.NewRegistry(server.WithBackend(backend))
//	reg.Create(ctx, "counter", json.RawMessage(`0`), true)
//	hub := server.New(reg, server.DefaultConfig())
//	err := hub.Run(ctx)
//
// # Endpoints
//
//   - GET /healthz
//   - GET /stores lists stores with their subscriber counts
//   - GET /stores/{name} returns the current value
//   - PUT /stores/{name} replaces the value of a writable store
//   - GET /stores/{name}/ws streams values over a WebSocket
//
// # WebSocket Frames
//
// Each connection subscribes to one store. The server sends
//
//	{"store":"counter","seq":1,"value":0}
//
// starting with the value current at connect time. Clients may send
//
//	{"op":"set","value":1}
//
// and receive {"code","error"} frames for rejected messages.
//
// Every connection has a bounded send buffer. Store notifications never wait
// on the network: a connection whose buffer is full is closed and counted as
// a slow consumer.
package server
