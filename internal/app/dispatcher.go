package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jamroom/server/internal/core"
	"github.com/jamroom/server/internal/domain"
)

// SharedFileStore removes stored shared-audio files when their room or
// host goes away. Implemented by the upload adapter; may be nil.
type SharedFileStore interface {
	Remove(name string)
}

type eventKind int

const (
	evConnect eventKind = iota
	evFrame
	evDisconnect
	evTick
	evCall
)

type event struct {
	kind eventKind
	id   core.ConnID
	sig  core.SignalConnection
	data []byte
	fn   func(*core.Registry)
	done chan struct{}
}

// Options tune the dispatcher. A zero HeartbeatPeriod disables the
// per-connection heartbeat timers (used by tests).
type Options struct {
	HeartbeatPeriod time.Duration
	Uploads         SharedFileStore
}

// Dispatcher is the single entry point for every inbound event. One run
// loop applies every mutation to the registry, so concurrent joins,
// leaves and disconnects on the same room never race. Broadcast fan-out
// happens inside the same loop via non-blocking TrySend; a slow receiver
// drops frames instead of stalling the loop.
type Dispatcher struct {
	reg       *core.Registry
	events    chan event
	heartbeat time.Duration
	uploads   SharedFileStore
	creates   *rateLimiter

	// touched only from the run loop
	beats  map[core.ConnID]context.CancelFunc
	runCtx context.Context
}

func NewDispatcher(reg *core.Registry, opts Options) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		events:    make(chan event, 256),
		heartbeat: opts.HeartbeatPeriod,
		uploads:   opts.Uploads,
		creates:   newRateLimiter(10, 10*time.Second),
		beats:     make(map[core.ConnID]context.CancelFunc),
		runCtx:    context.Background(),
	}
}

// Run consumes events until ctx is done. Handlers never block, so the
// loop always drains faster than presence-sized traffic arrives.
func (d *Dispatcher) Run(ctx context.Context) {
	d.runCtx = ctx
	log.Info().Str("module", "app.dispatcher").Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.dispatcher").Msg("dispatcher stopped")
			return
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

func (d *Dispatcher) handle(ev event) {
	switch ev.kind {
	case evConnect:
		d.reg.Bind(ev.id, ev.sig)
	case evFrame:
		d.handleFrame(ev.id, ev.data)
	case evDisconnect:
		d.handleDisconnect(ev.id)
	case evTick:
		d.handleTick(ev.id)
	case evCall:
		ev.fn(d.reg)
		close(ev.done)
	}
}

// Connect registers a freshly upgraded connection.
func (d *Dispatcher) Connect(id core.ConnID, sig core.SignalConnection) {
	d.events <- event{kind: evConnect, id: id, sig: sig}
}

// Frame enqueues one inbound wire frame.
func (d *Dispatcher) Frame(id core.ConnID, data []byte) {
	d.events <- event{kind: evFrame, id: id, data: data}
}

// Disconnect enqueues terminal cleanup for a connection. Cleanup runs at
// most once; repeat calls are no-ops.
func (d *Dispatcher) Disconnect(id core.ConnID) {
	d.events <- event{kind: evDisconnect, id: id}
}

// Do runs fn on the registry inside the serialized loop and waits for it.
// This is the call-in path for HTTP collaborators.
func (d *Dispatcher) Do(fn func(*core.Registry)) {
	done := make(chan struct{})
	d.events <- event{kind: evCall, fn: fn, done: done}
	<-done
}

// RoomExists is part of the upload collaborator contract.
func (d *Dispatcher) RoomExists(name domain.RoomName) bool {
	var ok bool
	d.Do(func(r *core.Registry) { ok = r.RoomExists(name) })
	return ok
}

// Host is part of the upload collaborator contract.
func (d *Dispatcher) Host(name domain.RoomName) (domain.Identity, bool) {
	var (
		host domain.Identity
		ok   bool
	)
	d.Do(func(r *core.Registry) { host, ok = r.GetHost(name) })
	return host, ok
}

// ShareFile records filename as the room's shared audio, removes the file
// it replaces and broadcasts file_uploaded to the room. Returns
// core.ErrRoomNotFound if the room vanished since the caller checked.
func (d *Dispatcher) ShareFile(room domain.RoomName, filename string) error {
	var err error
	d.Do(func(r *core.Registry) {
		var old string
		old, err = r.SetSharedFile(room, filename)
		if err != nil {
			return
		}
		if old != "" && d.uploads != nil {
			d.uploads.Remove(old)
		}
		d.broadcastRoom(room, MsgFileUploaded, filename)
	})
	return err
}

// RoomInfos is the lobby view for the REST listing.
func (d *Dispatcher) RoomInfos() []core.RoomInfo {
	var out []core.RoomInfo
	d.Do(func(r *core.Registry) { out = r.RoomInfos() })
	return out
}

func (d *Dispatcher) send(s *core.Session, typ string, data any) {
	f, err := encodeFrame(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("type", typ).Msg("encode frame")
		return
	}
	if err := s.Signal.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(s.ID)).Str("type", typ).Msg("send dropped")
	}
}

func (d *Dispatcher) broadcastRoom(room domain.RoomName, typ string, data any) {
	d.broadcastRoomExcept(room, "", typ, data)
}

func (d *Dispatcher) broadcastRoomExcept(room domain.RoomName, except core.ConnID, typ string, data any) {
	f, err := encodeFrame(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("type", typ).Msg("encode frame")
		return
	}
	for _, s := range d.reg.SessionsInRoom(room) {
		if s.ID == except {
			continue
		}
		if err := s.Signal.TrySend(f); err != nil {
			log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(s.ID)).Str("type", typ).Msg("broadcast dropped")
		}
	}
}

func (d *Dispatcher) broadcastAll(typ string, data any) {
	f, err := encodeFrame(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("type", typ).Msg("encode frame")
		return
	}
	for _, s := range d.reg.AllSessions() {
		if err := s.Signal.TrySend(f); err != nil {
			log.Debug().Err(err).Str("module", "app.dispatcher").Str("conn", string(s.ID)).Str("type", typ).Msg("broadcast dropped")
		}
	}
}
