package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/jamroom/server/internal/core"
	"github.com/jamroom/server/internal/domain"
)

// handleFrame resolves one inbound envelope to its handler. A malformed
// or out-of-order frame from one connection is logged and dropped; it
// never affects other connections.
func (d *Dispatcher) handleFrame(id core.ConnID, data []byte) {
	s, ok := d.reg.Session(id)
	if !ok {
		return
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Str("conn", string(id)).Msg("bad frame")
		return
	}

	switch env.Type {
	case MsgSetUsername:
		d.handleSetUsername(s, env.Data)
	case MsgCreateRoom:
		d.handleCreateRoom(s, env.Data)
	case MsgJoinRoom:
		d.handleJoinRoom(s, env.Data)
	case MsgLeaveRoom:
		d.handleLeaveRoom(s)
	case MsgPing:
		d.send(s, MsgPong, nil)
	case MsgLatency:
		d.handleLatency(s, env.Data)
	case MsgVoiceLevel:
		d.handleVoiceLevel(s, env.Data)
	case MsgReadyToCall:
		d.handleCallIntent(s, env.Data, MsgUserReadyToCall)
	case MsgStopCall:
		d.handleCallIntent(s, env.Data, MsgUserStoppedCall)
	case MsgUserStartedCall:
		d.handleCallMarker(s, env.Data, MsgUserStartedCall)
	case MsgUserStoppedCall:
		d.handleCallMarker(s, env.Data, MsgUserStoppedCall)
	case MsgCallOffer, MsgCallAnswer, MsgIceCandidate:
		if err := d.relayTargeted(s, env.Type, env.Data); err != nil {
			log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(id)).Str("type", env.Type).Msg("relay dropped")
		}
	case MsgBroadcastAudio:
		if err := d.relayHostCommand(s, env.Data); err != nil {
			log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(id)).Msg("audio command dropped")
		}
	default:
		log.Warn().Str("module", "app.dispatcher").Str("type", env.Type).Msg("unknown message type")
	}
}

func (d *Dispatcher) handleSetUsername(s *core.Session, raw json.RawMessage) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Msg("bad set_username payload")
		return
	}
	// Identity is fixed for the duration of room membership: renaming a
	// member would orphan its entry in the roster and the host field.
	if s.InRoom() {
		log.Debug().Str("module", "app.dispatcher").Str("conn", string(s.ID)).Msg("set_username ignored while in a room")
		return
	}
	identity, err := domain.NewIdentity(name)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(s.ID)).Msg("identity rejected")
		return
	}
	if err := d.reg.SetIdentity(s.ID, identity); err != nil {
		return
	}
	d.send(s, MsgUsernameSet, nil)
	d.broadcastAll(MsgRoomsList, d.reg.Rooms())
}

func (d *Dispatcher) handleCreateRoom(s *core.Session, raw json.RawMessage) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil || name == "" {
		log.Warn().Str("module", "app.dispatcher").Msg("bad create_room payload")
		return
	}
	if !d.creates.allow(s.ID) {
		log.Warn().Str("module", "app.dispatcher").Str("conn", string(s.ID)).Msg("create_room rate limited")
		return
	}
	if r := []rune(name); len(r) > 36 {
		name = string(r[:36])
	}
	if d.reg.CreateRoom(domain.RoomName(name)) {
		d.broadcastAll(MsgRoomsList, d.reg.Rooms())
	}
}

func (d *Dispatcher) handleJoinRoom(s *core.Session, raw json.RawMessage) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		log.Warn().Str("module", "app.dispatcher").Msg("bad join_room payload")
		return
	}
	// Re-joining the room the session is already in is a benign re-add:
	// membership, host and shared file are untouched, the roster is just
	// re-sent.
	if s.InRoom() && s.Room == domain.RoomName(name) {
		d.broadcastRoom(s.Room, MsgUsersUpdate, d.reg.Snapshot(s.Room))
		return
	}
	// An identity belongs to at most one room; switching rooms is a full
	// leave (election, teardown, broadcasts) followed by the join. The
	// presence record carries over so the switch does not zero latency.
	var (
		prev     domain.Presence
		switched bool
	)
	if s.InRoom() {
		prev, switched = d.reg.PresenceOf(s.Identity)
		d.leave(s)
	}
	res, err := d.reg.JoinRoom(s.ID, domain.RoomName(name))
	if err != nil {
		log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(s.ID)).Str("room", name).Msg("join dropped")
		return
	}
	if switched {
		d.reg.RestorePresence(prev)
	}
	d.broadcastRoom(res.Room, MsgUserJoined, s.Identity)
	d.broadcastRoom(res.Room, MsgUsersUpdate, d.reg.Snapshot(res.Room))
	if res.BecameHost {
		d.send(s, MsgYouAreHost, nil)
	}
	d.startHeartbeat(s.ID)
}

func (d *Dispatcher) handleLeaveRoom(s *core.Session) {
	// The session's current room governs; the room name in the payload is
	// advisory. Leaving while not in a room is a no-op.
	d.leave(s)
}

// leave is the one place membership is torn down: explicit leave_room,
// room switch and disconnect all go through it.
func (d *Dispatcher) leave(s *core.Session) {
	d.stopHeartbeat(s.ID)
	res, ok := d.reg.LeaveRoom(s.ID)
	if !ok {
		return
	}
	if res.RemovedFile != "" && d.uploads != nil {
		d.uploads.Remove(res.RemovedFile)
	}
	if res.Destroyed {
		d.broadcastAll(MsgRoomsList, d.reg.Rooms())
		return
	}
	if res.Elected {
		d.broadcastRoom(res.Room, MsgNewHost, res.NewHost)
	}
	d.broadcastRoom(res.Room, MsgUsersUpdate, d.reg.Snapshot(res.Room))
}

func (d *Dispatcher) handleLatency(s *core.Session, raw json.RawMessage) {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		log.Warn().Str("module", "app.dispatcher").Msg("bad latency payload")
		return
	}
	room, ok := d.reg.UpdateLatency(s.ID, int(ms))
	if !ok {
		return
	}
	d.broadcastRoom(room, MsgUsersUpdate, d.reg.Snapshot(room))
}

func (d *Dispatcher) handleVoiceLevel(s *core.Session, raw json.RawMessage) {
	var p struct {
		Level int    `json:"level"`
		Room  string `json:"room"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Str("module", "app.dispatcher").Msg("bad voice_level payload")
		return
	}
	room := domain.RoomName(p.Room)
	if !d.reg.UpdateVoiceLevel(s.ID, room, p.Level) {
		return
	}
	d.broadcastRoom(room, MsgUsersUpdate, d.reg.Snapshot(room))
}

// handleCallIntent re-broadcasts a call-start/-stop intent to the other
// members of the named room, tagged with the sender's connection id so
// they can open or drop a peer connection toward it.
func (d *Dispatcher) handleCallIntent(s *core.Session, raw json.RawMessage, outType string) {
	var room string
	if err := json.Unmarshal(raw, &room); err != nil {
		log.Warn().Str("module", "app.dispatcher").Msg("bad call intent payload")
		return
	}
	if !d.reg.RoomExists(domain.RoomName(room)) {
		return
	}
	d.broadcastRoomExcept(domain.RoomName(room), s.ID, outType, s.ID)
}

// handleCallMarker tells the whole room, sender included, that an
// identity entered or left the call, for the "who is in the call" view.
func (d *Dispatcher) handleCallMarker(s *core.Session, raw json.RawMessage, outType string) {
	var room string
	if err := json.Unmarshal(raw, &room); err != nil {
		log.Warn().Str("module", "app.dispatcher").Msg("bad call marker payload")
		return
	}
	if !d.reg.RoomExists(domain.RoomName(room)) {
		return
	}
	d.broadcastRoom(domain.RoomName(room), outType, s.Identity)
}

// handleDisconnect is the terminal cleanup: equivalent to an explicit
// leave plus identity teardown plus heartbeat cancellation, exactly once.
// The session lookup guards the "exactly once": after Unbind every later
// event for this id falls through.
func (d *Dispatcher) handleDisconnect(id core.ConnID) {
	s, ok := d.reg.Session(id)
	if !ok {
		return
	}
	d.leave(s)
	d.creates.forget(id)
	d.reg.Unbind(id)
	log.Info().Str("module", "app.dispatcher").Str("conn", string(id)).Msg("disconnected")
}

// handleTick sends the heartbeat prompt; the connection answers with its
// own ping/latency exchange.
func (d *Dispatcher) handleTick(id core.ConnID) {
	s, ok := d.reg.Session(id)
	if !ok || !s.InRoom() {
		return
	}
	d.send(s, MsgPing, nil)
}
