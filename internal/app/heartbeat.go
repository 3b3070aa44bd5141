package app

import (
	"context"
	"time"

	"github.com/jamroom/server/internal/core"
)

// startHeartbeat schedules the recurring presence prompt for a connection
// that just entered a room. The ticker goroutine never touches shared
// state; each tick is enqueued like any other event so the run loop stays
// the only mutator. Called only from the run loop.
func (d *Dispatcher) startHeartbeat(id core.ConnID) {
	if d.heartbeat <= 0 {
		return
	}
	if _, ok := d.beats[id]; ok {
		return
	}
	ctx, cancel := context.WithCancel(d.runCtx)
	d.beats[id] = cancel
	go func() {
		t := time.NewTicker(d.heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				select {
				case d.events <- event{kind: evTick, id: id}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// stopHeartbeat cancels the connection's timer, if any. Idempotent.
func (d *Dispatcher) stopHeartbeat(id core.ConnID) {
	if cancel, ok := d.beats[id]; ok {
		cancel()
		delete(d.beats, id)
	}
}
