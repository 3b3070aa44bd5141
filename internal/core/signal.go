package core

// Frame is a raw outbound payload, already encoded for the wire.
type Frame []byte

// ConnID is the opaque per-connection token used for targeted relay.
// It is distinct from the identity the connection claims.
type ConnID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
