package poolcore

// This file is the narrow contract the core consumes from the
// surrounding proxy's connection layer. None of it performs real socket
// I/O; it describes the shape of the collaborators the core is driven
// by and drives in turn (spec §6).

// ListenerIO is the proxy listener a pool owns while accepting clients.
type ListenerIO interface {
	Close() error
}

// ClientIO is the per-client-connection handle a pool tracks while the
// client is attached to it.
type ClientIO interface {
	Close() error
}

// ClientConn is one accepted, still-open client connection.
type ClientConn struct {
	PoolIndex int
	IO        ClientIO
}

// ConnectionLayer is the set of operations the core asks the event loop
// to perform; it never calls a real socket function directly.
type ConnectionLayer interface {
	// Open starts a non-blocking connect to addr, returning a handle
	// once the connect is initiated (not necessarily complete).
	Open(addr string) (ClientIO, error)
	// Close tears down a connection handle.
	Close(h ClientIO) error
	// Enqueue appends bytes to a connection's outbound side.
	Enqueue(h ClientIO, b []byte) error
	// CloseAll closes every connection associated with a server.
	CloseAll(serverName string) error
}

// AcceptCallbacks are the inbound notifications the event loop delivers
// into the core, named directly after spec §6.
type AcceptCallbacks interface {
	OnClientAccept(pool *Pool)
	OnClientRequest(conn *ClientConn, key []byte, protocolHandle any)
	OnServerConnected(conn any)
	OnServerResponse(conn any, requestHandle any)
	OnError(conn any, errKind error)
	OnTimeout(conn any)
}
