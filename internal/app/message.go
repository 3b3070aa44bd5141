package app

import (
	"encoding/json"

	"github.com/jamroom/server/internal/core"
)

// Wire message types. Inbound names are what connections send, outbound
// names are what the server emits; "ping" goes both ways (the server's
// heartbeat prompt and the client's echo probe share the name).
const (
	MsgSetUsername     = "set_username"
	MsgCreateRoom      = "create_room"
	MsgJoinRoom        = "join_room"
	MsgLeaveRoom       = "leave_room"
	MsgPing            = "ping"
	MsgLatency         = "latency"
	MsgVoiceLevel      = "voice_level"
	MsgReadyToCall     = "ready_to_call"
	MsgStopCall        = "stop_call"
	MsgUserStartedCall = "user_started_call"
	MsgUserStoppedCall = "user_stopped_call"
	MsgCallOffer       = "call_offer"
	MsgCallAnswer      = "call_answer"
	MsgIceCandidate    = "ice_candidate"
	MsgBroadcastAudio  = "broadcast_audio"

	MsgUsernameSet     = "username_set"
	MsgRoomsList       = "rooms_list"
	MsgUserJoined      = "user_joined"
	MsgUsersUpdate     = "users_update"
	MsgYouAreHost      = "you_are_host"
	MsgNewHost         = "new_host"
	MsgPong            = "pong"
	MsgUserReadyToCall = "user_ready_to_call"
	MsgFileUploaded    = "file_uploaded"
	MsgAudioCommand    = "audio_command"
)

// Envelope is the frame shape in both directions: a type tag plus an
// event-specific payload. Relay payloads stay json.RawMessage end to end.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(typ string, data any) (core.Frame, error) {
	out := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: typ, Data: data}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
