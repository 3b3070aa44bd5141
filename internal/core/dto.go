package core

import "github.com/jamroom/server/internal/domain"

// MemberStatus is one entry of a room presence snapshot (users_update).
type MemberStatus struct {
	Identity   domain.Identity `json:"identity"`
	Latency    int             `json:"latency"`
	VoiceLevel int             `json:"voiceLevel,omitempty"`
	IsHost     bool            `json:"isHost,omitempty"`
}

// RoomInfo is a read-only view for the lobby API.
type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}
