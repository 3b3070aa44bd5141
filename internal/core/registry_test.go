package core

import (
	"testing"

	"github.com/jamroom/server/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(Frame) error { return nil }
func (nopConn) Close()              {}

func bindWithIdentity(t *testing.T, r *Registry, id ConnID, identity domain.Identity) *Session {
	t.Helper()
	s := r.Bind(id, nopConn{})
	if err := r.SetIdentity(id, identity); err != nil {
		t.Fatalf("SetIdentity(%q): %v", identity, err)
	}
	return s
}

func TestCreateRoom(t *testing.T) {
	r := NewRegistry()
	if !r.CreateRoom("jam") {
		t.Fatal("first create should succeed")
	}
	if r.CreateRoom("jam") {
		t.Fatal("duplicate create must be a no-op")
	}
	if !r.RoomExists("jam") {
		t.Fatal("room should exist after create")
	}
	if _, ok := r.GetHost("jam"); ok {
		t.Fatal("freshly created room must have no host until first join")
	}
}

func TestJoinRoom(t *testing.T) {
	t.Run("UnknownRoom", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		if _, err := r.JoinRoom("c1", "nope"); err != ErrRoomNotFound {
			t.Fatalf("err = %v, want ErrRoomNotFound", err)
		}
	})

	t.Run("NoIdentity", func(t *testing.T) {
		r := NewRegistry()
		r.Bind("c1", nopConn{})
		r.CreateRoom("jam")
		if _, err := r.JoinRoom("c1", "jam"); err != ErrNoIdentity {
			t.Fatalf("err = %v, want ErrNoIdentity", err)
		}
	})

	t.Run("FirstJoinerBecomesHost", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		bindWithIdentity(t, r, "c2", "bob")
		r.CreateRoom("jam")

		res, err := r.JoinRoom("c1", "jam")
		if err != nil || !res.BecameHost {
			t.Fatalf("alice join = (%+v, %v), want became host", res, err)
		}
		res, err = r.JoinRoom("c2", "jam")
		if err != nil || res.BecameHost {
			t.Fatalf("bob join = (%+v, %v), want not host", res, err)
		}
		if host, _ := r.GetHost("jam"); host != "alice" {
			t.Fatalf("host = %q, want alice", host)
		}
	})

	t.Run("PresenceRecordCreated", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		r.CreateRoom("jam")
		if _, err := r.JoinRoom("c1", "jam"); err != nil {
			t.Fatal(err)
		}
		if _, ok := r.PresenceOf("alice"); !ok {
			t.Fatal("presence record should exist for a room member")
		}
	})
}

func TestLeaveRoom(t *testing.T) {
	t.Run("NotInRoomIsNoop", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		if _, ok := r.LeaveRoom("c1"); ok {
			t.Fatal("leaving while not in a room must be a no-op")
		}
	})

	t.Run("HostLeaveElectsNext", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		bindWithIdentity(t, r, "c2", "bob")
		bindWithIdentity(t, r, "c3", "carol")
		r.CreateRoom("jam")
		for _, id := range []ConnID{"c1", "c2", "c3"} {
			if _, err := r.JoinRoom(id, "jam"); err != nil {
				t.Fatal(err)
			}
		}

		res, ok := r.LeaveRoom("c1")
		if !ok || !res.WasHost || !res.Elected {
			t.Fatalf("host leave = %+v, want election", res)
		}
		if res.NewHost != "bob" {
			t.Fatalf("new host = %q, want bob (first remaining in join order)", res.NewHost)
		}
		if host, _ := r.GetHost("jam"); host != "bob" {
			t.Fatalf("registry host = %q, want bob", host)
		}
	})

	t.Run("LastLeaveDestroysRoom", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		r.CreateRoom("jam")
		if _, err := r.JoinRoom("c1", "jam"); err != nil {
			t.Fatal(err)
		}

		res, ok := r.LeaveRoom("c1")
		if !ok || !res.Destroyed {
			t.Fatalf("last leave = %+v, want destroyed", res)
		}
		if r.RoomExists("jam") {
			t.Fatal("room must be destroyed the instant it empties")
		}
		if _, ok := r.PresenceOf("alice"); ok {
			t.Fatal("presence record must not outlive membership")
		}
	})

	t.Run("HostLeaveDropsSharedFile", func(t *testing.T) {
		r := NewRegistry()
		bindWithIdentity(t, r, "c1", "alice")
		bindWithIdentity(t, r, "c2", "bob")
		r.CreateRoom("jam")
		r.JoinRoom("c1", "jam")
		r.JoinRoom("c2", "jam")
		if _, err := r.SetSharedFile("jam", "jam-1.mp3"); err != nil {
			t.Fatal(err)
		}

		res, _ := r.LeaveRoom("c1")
		if res.RemovedFile != "jam-1.mp3" {
			t.Fatalf("removed file = %q, want jam-1.mp3", res.RemovedFile)
		}
		if f := r.SharedFile("jam"); f != "" {
			t.Fatalf("room still references %q after host departure", f)
		}
	})
}

// A room exists iff its member set is non-empty, over any join/leave
// sequence after the first join.
func TestRoomLifecycleInvariant(t *testing.T) {
	r := NewRegistry()
	bindWithIdentity(t, r, "c1", "alice")
	bindWithIdentity(t, r, "c2", "bob")
	r.CreateRoom("jam")

	steps := []struct {
		conn ConnID
		join bool
	}{
		{"c1", true}, {"c2", true}, {"c1", false}, {"c1", true},
		{"c2", false}, {"c1", false},
	}
	members := map[ConnID]bool{}
	for i, st := range steps {
		if st.join {
			if !r.RoomExists("jam") {
				r.CreateRoom("jam")
			}
			if _, err := r.JoinRoom(st.conn, "jam"); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			members[st.conn] = true
		} else {
			r.LeaveRoom(st.conn)
			delete(members, st.conn)
		}
		if got, want := r.RoomExists("jam"), len(members) > 0; got != want {
			t.Fatalf("step %d: RoomExists = %v with %d members", i, got, len(members))
		}
		if len(members) > 0 {
			host, ok := r.GetHost("jam")
			if !ok {
				t.Fatalf("step %d: non-empty room has no host", i)
			}
			found := false
			for _, m := range r.Snapshot("jam") {
				if m.Identity == host {
					found = true
				}
			}
			if !found {
				t.Fatalf("step %d: host %q is not a member", i, host)
			}
		}
	}
}

func TestRoomsCreationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []domain.RoomName{"jam", "blues", "funk"} {
		r.CreateRoom(name)
	}
	got := r.Rooms()
	want := []domain.RoomName{"jam", "blues", "funk"}
	if len(got) != len(want) {
		t.Fatalf("rooms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rooms = %v, want creation order %v", got, want)
		}
	}

	bindWithIdentity(t, r, "c1", "alice")
	r.JoinRoom("c1", "blues")
	r.LeaveRoom("c1")
	got = r.Rooms()
	if len(got) != 2 || got[0] != "jam" || got[1] != "funk" {
		t.Fatalf("rooms after destroy = %v, want [jam funk]", got)
	}
}

func TestPresenceUpdates(t *testing.T) {
	r := NewRegistry()
	bindWithIdentity(t, r, "c1", "alice")

	t.Run("DroppedWithoutRoom", func(t *testing.T) {
		if _, ok := r.UpdateLatency("c1", 42); ok {
			t.Fatal("latency without a room must be dropped")
		}
	})

	r.CreateRoom("jam")
	r.JoinRoom("c1", "jam")

	t.Run("LatencyStored", func(t *testing.T) {
		room, ok := r.UpdateLatency("c1", 42)
		if !ok || room != "jam" {
			t.Fatalf("UpdateLatency = (%q, %v)", room, ok)
		}
		p, _ := r.PresenceOf("alice")
		if p.Latency != 42 {
			t.Fatalf("latency = %d, want 42", p.Latency)
		}
	})

	t.Run("VoiceLevelStaleRoomDropped", func(t *testing.T) {
		if r.UpdateVoiceLevel("c1", "gone", 80) {
			t.Fatal("voice level for a vanished room must be dropped")
		}
	})

	t.Run("VoiceLevelStored", func(t *testing.T) {
		if !r.UpdateVoiceLevel("c1", "jam", 63) {
			t.Fatal("voice level for current room should be stored")
		}
		p, _ := r.PresenceOf("alice")
		if p.VoiceLevel != 63 {
			t.Fatalf("voice level = %d, want 63", p.VoiceLevel)
		}
	})
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	bindWithIdentity(t, r, "c1", "alice")
	bindWithIdentity(t, r, "c2", "bob")
	r.CreateRoom("jam")
	r.JoinRoom("c1", "jam")
	r.JoinRoom("c2", "jam")
	r.UpdateLatency("c1", 42)

	snap := r.Snapshot("jam")
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}
	if snap[0].Identity != "alice" || snap[1].Identity != "bob" {
		t.Fatalf("snapshot order = %v, want join order", snap)
	}
	if !snap[0].IsHost || snap[1].IsHost {
		t.Fatalf("isHost flags = %v/%v, want only alice", snap[0].IsHost, snap[1].IsHost)
	}
	if snap[0].Latency != 42 || snap[1].Latency != 0 {
		t.Fatalf("latencies = %d/%d, want 42/0", snap[0].Latency, snap[1].Latency)
	}
}
