package domain

// Presence holds the last self-reported measurements for one identity.
// A record exists only while the identity is a member of some room.
type Presence struct {
	Identity   Identity
	Latency    int // round-trip milliseconds, reported by the remote side
	VoiceLevel int // 0..100
}
