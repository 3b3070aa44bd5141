package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jamroom/server/internal/core"
)

func TestTargetedRelay(t *testing.T) {
	d, reg := newTestDispatcher()
	joinAs(t, d, "a", "alice", "jam")
	bob := joinAs(t, d, "b", "bob", "jam")

	t.Run("DeliveredVerbatim", func(t *testing.T) {
		offer := json.RawMessage(`{"sdp":"v=0 mock","type":"offer"}`)
		s, _ := reg.Session("a")
		payload, _ := json.Marshal(map[string]any{
			"offer":              offer,
			"targetConnectionId": "b",
		})
		if err := d.relayTargeted(s, MsgCallOffer, payload); err != nil {
			t.Fatalf("relay to live target: %v", err)
		}

		raw, ok := bob.lastOfType(t, MsgCallOffer)
		if !ok {
			t.Fatal("target never received the offer")
		}
		var out struct {
			Offer        json.RawMessage `json:"offer"`
			ConnectionID core.ConnID     `json:"connectionId"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out.Offer, offer) {
			t.Fatalf("offer payload mutated in transit: %s", out.Offer)
		}
		if out.ConnectionID != "a" {
			t.Fatalf("connectionId = %q, want sender's conn id", out.ConnectionID)
		}
	})

	t.Run("UnknownTargetDropped", func(t *testing.T) {
		s, _ := reg.Session("a")
		payload, _ := json.Marshal(map[string]any{
			"candidate":          map[string]string{"candidate": "mock"},
			"targetConnectionId": "vanished",
		})
		err := d.relayTargeted(s, MsgIceCandidate, payload)
		if !errors.Is(err, core.ErrUnknownTarget) {
			t.Fatalf("err = %v, want ErrUnknownTarget", err)
		}
		// best-effort: no error frame reaches the sender either
		if _, ok := bob.lastOfType(t, MsgIceCandidate); ok {
			t.Fatal("nobody should receive a relay to a vanished target")
		}
	})
}

func TestHostCommandRelay(t *testing.T) {
	d, reg := newTestDispatcher()
	joinAs(t, d, "a", "alice", "jam")
	joinAs(t, d, "b", "bob", "jam")

	payload := func(room string) json.RawMessage {
		b, _ := json.Marshal(map[string]any{"action": "pause", "room": room})
		return b
	}

	t.Run("UnknownRoom", func(t *testing.T) {
		s, _ := reg.Session("a")
		if err := d.relayHostCommand(s, payload("gone")); !errors.Is(err, core.ErrRoomNotFound) {
			t.Fatalf("err = %v, want ErrRoomNotFound", err)
		}
	})

	t.Run("NonHostDenied", func(t *testing.T) {
		s, _ := reg.Session("b")
		if err := d.relayHostCommand(s, payload("jam")); !errors.Is(err, core.ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("HostAccepted", func(t *testing.T) {
		s, _ := reg.Session("a")
		if err := d.relayHostCommand(s, payload("jam")); err != nil {
			t.Fatalf("host command rejected: %v", err)
		}
	})
}
