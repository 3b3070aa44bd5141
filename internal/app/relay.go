package app

import (
	"encoding/json"

	"github.com/jamroom/server/internal/core"
	"github.com/jamroom/server/internal/domain"
)

// relayTargeted forwards a call_offer / call_answer / ice_candidate
// payload to the addressed connection id, retagged with the sender's
// connection id. The payload body is opaque and passes through untouched.
// Delivery is best-effort, at-most-once: an unknown target returns
// core.ErrUnknownTarget to the caller and nothing to the wire.
func (d *Dispatcher) relayTargeted(s *core.Session, typ string, raw json.RawMessage) error {
	var p struct {
		Offer     json.RawMessage `json:"offer,omitempty"`
		Answer    json.RawMessage `json:"answer,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
		Target    string          `json:"targetConnectionId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	target, ok := d.reg.Session(core.ConnID(p.Target))
	if !ok {
		return core.ErrUnknownTarget
	}
	out := struct {
		Offer        json.RawMessage `json:"offer,omitempty"`
		Answer       json.RawMessage `json:"answer,omitempty"`
		Candidate    json.RawMessage `json:"candidate,omitempty"`
		ConnectionID core.ConnID     `json:"connectionId"`
	}{
		Offer:        p.Offer,
		Answer:       p.Answer,
		Candidate:    p.Candidate,
		ConnectionID: s.ID,
	}
	d.send(target, typ, out)
	return nil
}

// relayHostCommand broadcasts a playback command to the sender's room,
// sender included, but only when the sender is the room's current host.
// Anyone else gets core.ErrPermissionDenied and wire silence.
func (d *Dispatcher) relayHostCommand(s *core.Session, raw json.RawMessage) error {
	var p struct {
		Action json.RawMessage `json:"action"`
		Room   string          `json:"room"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	room := domain.RoomName(p.Room)
	if !d.reg.RoomExists(room) {
		return core.ErrRoomNotFound
	}
	host, ok := d.reg.GetHost(room)
	if !ok || s.Identity == "" || s.Identity != host {
		return core.ErrPermissionDenied
	}
	d.broadcastRoom(room, MsgAudioCommand, p.Action)
	return nil
}
