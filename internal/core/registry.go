package core

import (
	"github.com/rs/zerolog/log"

	"github.com/jamroom/server/internal/domain"
)

// Session binds a live connection to what it has claimed so far: an
// identity once set_username succeeds, a room once a join succeeds.
type Session struct {
	ID       ConnID
	Identity domain.Identity
	Room     domain.RoomName
	Signal   SignalConnection
}

// InRoom reports whether the session currently belongs to a room.
func (s *Session) InRoom() bool { return s.Room != "" }

type roomState struct {
	meta *domain.Room
	// members is kept in join order; host election picks the first
	// remaining entry, so the order is part of the contract.
	members []domain.Identity
	host    domain.Identity
}

func (rs *roomState) hasMember(id domain.Identity) bool {
	for _, m := range rs.members {
		if m == id {
			return true
		}
	}
	return false
}

func (rs *roomState) removeMember(id domain.Identity) {
	for i, m := range rs.members {
		if m == id {
			rs.members = append(rs.members[:i], rs.members[i+1:]...)
			return
		}
	}
}

// Registry is the single source of truth for sessions, rooms, membership,
// hosts and presence. It is deliberately not safe for concurrent use: the
// dispatcher owns it and serializes every mutation (one event at a time),
// so the registry itself stays plain and cheap to test.
type Registry struct {
	sessions map[ConnID]*Session
	rooms    map[domain.RoomName]*roomState
	order    []domain.RoomName
	presence map[domain.Identity]*domain.Presence
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[ConnID]*Session),
		rooms:    make(map[domain.RoomName]*roomState),
		presence: make(map[domain.Identity]*domain.Presence),
	}
}

// Bind registers a new connection. Called once per connect event.
func (r *Registry) Bind(id ConnID, sig SignalConnection) *Session {
	s := &Session{ID: id, Signal: sig}
	r.sessions[id] = s
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Msg("session bound")
	return s
}

// Unbind forgets a connection. Membership must already be torn down.
func (r *Registry) Unbind(id ConnID) {
	delete(r.sessions, id)
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Msg("session unbound")
}

func (r *Registry) Session(id ConnID) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// SessionsInRoom returns every live session attached to the room.
// Broadcast fan-out goes by session, so duplicate display names each
// still get their own copy.
func (r *Registry) SessionsInRoom(name domain.RoomName) []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Room == name {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) AllSessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) SetIdentity(id ConnID, name domain.Identity) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrUnknownTarget
	}
	s.Identity = name
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Str("identity", string(name)).Msg("identity set")
	return nil
}

// CreateRoom registers an empty room with no host. Returns false when the
// name is already taken (a no-op by design, not an error).
func (r *Registry) CreateRoom(name domain.RoomName) bool {
	if _, ok := r.rooms[name]; ok {
		return false
	}
	r.rooms[name] = &roomState{meta: &domain.Room{Name: name}}
	r.order = append(r.order, name)
	log.Info().Str("module", "core.registry").Str("room", string(name)).Msg("room created")
	return true
}

func (r *Registry) RoomExists(name domain.RoomName) bool {
	_, ok := r.rooms[name]
	return ok
}

// Rooms lists room names in creation order.
func (r *Registry) Rooms() []domain.RoomName {
	out := make([]domain.RoomName, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) RoomInfos() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, RoomInfo{Name: name, MemberCount: len(r.rooms[name].members)})
	}
	return out
}

func (r *Registry) GetHost(name domain.RoomName) (domain.Identity, bool) {
	rs, ok := r.rooms[name]
	if !ok || rs.host == "" {
		return "", false
	}
	return rs.host, true
}

// SetSharedFile records the room's shared audio reference and returns the
// replaced one, so the caller can delete it from disk.
func (r *Registry) SetSharedFile(name domain.RoomName, file string) (string, error) {
	rs, ok := r.rooms[name]
	if !ok {
		return "", ErrRoomNotFound
	}
	old := rs.meta.SharedFile
	rs.meta.SharedFile = file
	return old, nil
}

func (r *Registry) SharedFile(name domain.RoomName) string {
	if rs, ok := r.rooms[name]; ok {
		return rs.meta.SharedFile
	}
	return ""
}

// JoinResult describes the side effects of a successful join.
type JoinResult struct {
	Room       domain.RoomName
	BecameHost bool
}

// JoinRoom adds the session's identity to the room. The session must have
// an identity and must not be in another room (the dispatcher leaves any
// current room first). The first joiner of a hostless room becomes host.
func (r *Registry) JoinRoom(id ConnID, name domain.RoomName) (JoinResult, error) {
	s, ok := r.sessions[id]
	if !ok {
		return JoinResult{}, ErrUnknownTarget
	}
	if s.Identity == "" {
		return JoinResult{}, ErrNoIdentity
	}
	rs, ok := r.rooms[name]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}

	if !rs.hasMember(s.Identity) {
		rs.members = append(rs.members, s.Identity)
	}
	s.Room = name
	if _, ok := r.presence[s.Identity]; !ok {
		r.presence[s.Identity] = &domain.Presence{Identity: s.Identity}
	}

	res := JoinResult{Room: name}
	if rs.host == "" {
		rs.host = s.Identity
		res.BecameHost = true
	}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Str("room", string(name)).Bool("host", res.BecameHost).Msg("joined room")
	return res, nil
}

// LeaveResult describes everything the dispatcher must broadcast or tear
// down after a leave.
type LeaveResult struct {
	Room        domain.RoomName
	Identity    domain.Identity
	WasHost     bool
	NewHost     domain.Identity
	Elected     bool
	Destroyed   bool
	RemovedFile string
}

// LeaveRoom removes the session's identity from its current room, electing
// a new host or destroying the room as needed. Leaving while not in a room
// is a no-op (ok == false).
func (r *Registry) LeaveRoom(id ConnID) (LeaveResult, bool) {
	s, ok := r.sessions[id]
	if !ok || s.Room == "" {
		return LeaveResult{}, false
	}
	rs, ok := r.rooms[s.Room]
	if !ok {
		s.Room = ""
		return LeaveResult{}, false
	}

	res := LeaveResult{Room: s.Room, Identity: s.Identity}
	rs.removeMember(s.Identity)
	delete(r.presence, s.Identity)
	s.Room = ""

	if rs.host == res.Identity {
		res.WasHost = true
		// The shared file belongs to the host; it does not survive them.
		res.RemovedFile = rs.meta.SharedFile
		rs.meta.SharedFile = ""
		if next, ok := ElectHost(rs.members, res.Identity); ok {
			rs.host = next
			res.NewHost = next
			res.Elected = true
		} else {
			rs.host = ""
		}
	}

	if len(rs.members) == 0 {
		if res.RemovedFile == "" {
			res.RemovedFile = rs.meta.SharedFile
		}
		delete(r.rooms, res.Room)
		for i, n := range r.order {
			if n == res.Room {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		res.Destroyed = true
	}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Str("room", string(res.Room)).Bool("destroyed", res.Destroyed).Msg("left room")
	return res, true
}

// UpdateLatency stores a self-reported round-trip time. Reports from a
// session with no identity or no room are dropped (they may be in flight
// from a room just left).
func (r *Registry) UpdateLatency(id ConnID, ms int) (domain.RoomName, bool) {
	s, ok := r.sessions[id]
	if !ok || s.Identity == "" || s.Room == "" {
		return "", false
	}
	if _, ok := r.rooms[s.Room]; !ok {
		return "", false
	}
	p, ok := r.presence[s.Identity]
	if !ok {
		p = &domain.Presence{Identity: s.Identity}
		r.presence[s.Identity] = p
	}
	p.Latency = ms
	return s.Room, true
}

// UpdateVoiceLevel stores a voice-activity report addressed to a specific
// room. Stale reports (unknown room, no identity, not a member anymore)
// are dropped.
func (r *Registry) UpdateVoiceLevel(id ConnID, room domain.RoomName, level int) bool {
	s, ok := r.sessions[id]
	if !ok || s.Identity == "" || s.Room == "" {
		return false
	}
	rs, ok := r.rooms[room]
	if !ok || !rs.hasMember(s.Identity) {
		return false
	}
	p, ok := r.presence[s.Identity]
	if !ok {
		p = &domain.Presence{Identity: s.Identity}
		r.presence[s.Identity] = p
	}
	p.VoiceLevel = level
	return true
}

// RestorePresence reinstates a measurement record captured before a room
// switch, so latency and voice level survive the leave-then-join.
func (r *Registry) RestorePresence(p domain.Presence) {
	if _, ok := r.presence[p.Identity]; !ok {
		return
	}
	cp := p
	r.presence[p.Identity] = &cp
}

func (r *Registry) PresenceOf(id domain.Identity) (domain.Presence, bool) {
	if p, ok := r.presence[id]; ok {
		return *p, true
	}
	return domain.Presence{}, false
}

// Snapshot builds the users_update view of a room: every member in join
// order with its latest latency and voice level (0 if never reported).
func (r *Registry) Snapshot(name domain.RoomName) []MemberStatus {
	rs, ok := r.rooms[name]
	if !ok {
		return nil
	}
	out := make([]MemberStatus, 0, len(rs.members))
	for _, m := range rs.members {
		st := MemberStatus{Identity: m, IsHost: m == rs.host}
		if p, ok := r.presence[m]; ok {
			st.Latency = p.Latency
			st.VoiceLevel = p.VoiceLevel
		}
		out = append(out, st)
	}
	return out
}
