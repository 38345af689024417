/******************************************************************************
 *
 *  Description :
 *
 *    Registry of live hubs: loads hubs on first use, routes commands to them
 *    and tears them down.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hubchat/chat/server/concurrency"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

const (
	// Default length of a hub's command queue.
	defaultQueueLen = 128
	// Default time a hub stays loaded without activity.
	defaultIdleTimeout = 5 * time.Minute
	// How many times a command is retried against a hub which unloaded concurrently.
	maxRouteAttempts = 3
	// Number of invite redemption locks.
	inviteLockStripes = 256
	// Background workers for best-effort cleanup.
	bgWorkers = 4
)

// hubEntry is a slot in the registry. It is published before the hub finished loading,
// so concurrent lookups of the same hub wait on ready instead of loading it twice.
type hubEntry struct {
	ready chan struct{}
	hub   *Hub
	err   error
}

// Registry is the process-wide map of hub id to live hub.
type Registry struct {
	// Hubs indexed by id: types.Uid -> *hubEntry.
	hubs sync.Map

	queueLen    int
	idleTimeout time.Duration

	// Id generator for hubs, channels and ranks.
	newUid func() types.Uid
	// Wall clock.
	now func() time.Time

	// Serializes redemptions of the same invite.
	inviteLocks concurrency.StripedMutex
	// Best-effort background work, like purging logs of deleted channels.
	bgPool *concurrency.GoRoutinePool

	shuttingDown atomic.Bool
}

type registryConfig struct {
	// Length of a hub's command queue.
	QueueLen int `json:"queue_len" env:"QUEUE_LEN"`
	// Seconds of inactivity before a hub is unloaded. Negative disables unloading.
	IdleHubTimeout int `json:"idle_hub_timeout" env:"IDLE_HUB_TIMEOUT"`
}

func newRegistry(cfg registryConfig) *Registry {
	r := &Registry{
		queueLen:    cfg.QueueLen,
		idleTimeout: time.Duration(cfg.IdleHubTimeout) * time.Second,
		newUid:      store.Store.GetUid,
		now:         types.TimeNow,
		inviteLocks: concurrency.NewStripedMutex(inviteLockStripes),
		bgPool:      concurrency.NewGoRoutinePool(bgWorkers, 1024),
	}
	if r.queueLen <= 0 {
		r.queueLen = defaultQueueLen
	}
	if cfg.IdleHubTimeout == 0 {
		r.idleTimeout = defaultIdleTimeout
	} else if cfg.IdleHubTimeout < 0 {
		r.idleTimeout = 0
	}
	return r
}

func errShuttingDown() error {
	return fmt.Errorf("%w: server is shutting down", types.ErrBusy)
}

// get returns the live hub, loading it from the store if necessary.
func (r *Registry) get(ctx context.Context, id types.Uid) (*Hub, error) {
	for {
		if r.shuttingDown.Load() {
			return nil, errShuttingDown()
		}

		if v, ok := r.hubs.Load(id); ok {
			e := v.(*hubEntry)
			select {
			case <-e.ready:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if e.err != nil {
				return nil, e.err
			}
			return e.hub, nil
		}

		e := &hubEntry{ready: make(chan struct{})}
		if _, loaded := r.hubs.LoadOrStore(id, e); loaded {
			// Lost the race, wait for the winner.
			continue
		}

		e.hub, e.err = r.load(id, e)
		if e.err != nil {
			// Do not cache failures.
			r.hubs.CompareAndDelete(id, e)
		}
		close(e.ready)
		if e.err != nil {
			return nil, e.err
		}
		return e.hub, nil
	}
}

// load reads the hub from the store and starts its goroutine.
func (r *Registry) load(id types.Uid, e *hubEntry) (*Hub, error) {
	state, err := store.Hubs.Get(id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			logs.Warn.Printf("hub[%s] failed to load: %v", id, err)
		}
		return nil, asStorageErr(err)
	}

	seqs, err := store.Messages.LastSeq(id)
	if err != nil {
		logs.Warn.Printf("hub[%s] failed to load message counters: %v", id, err)
		return nil, asStorageErr(err)
	}

	h := newHub(r, state, seqs)
	h.entry = e
	go h.run()
	statsLiveHubs.Inc()
	logs.Info.Printf("hub[%s] loaded", id)
	return h, nil
}

// start publishes a freshly created hub.
func (r *Registry) start(state *types.Hub) *Hub {
	e := &hubEntry{ready: make(chan struct{})}
	h := newHub(r, state, nil)
	h.entry = e
	e.hub = h
	close(e.ready)
	r.hubs.Store(state.Id, e)
	go h.run()
	statsLiveHubs.Inc()
	return h
}

// unregister removes the hub from the registry unless it has already been replaced.
func (r *Registry) unregister(h *Hub) {
	if r.hubs.CompareAndDelete(h.id, h.entry) {
		statsLiveHubs.Dec()
	}
}

// do runs fn on the hub's goroutine and returns its result.
func (r *Registry) do(ctx context.Context, id types.Uid, op string, fn func(h *Hub) (any, error)) (any, error) {
	for attempt := 1; ; attempt++ {
		h, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}

		val, err := h.call(ctx, op, func() (any, error) { return fn(h) })
		if err != errHubGone {
			return val, err
		}
		if attempt >= maxRouteAttempts {
			return nil, types.ErrBusy
		}

		// The hub is unloading. Wait for it to leave the registry, then reload.
		select {
		case <-h.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// hubExec is a typed wrapper for Registry.do.
func hubExec[T any](ctx context.Context, r *Registry, id types.Uid, op string, fn func(h *Hub) (T, error)) (T, error) {
	var zero T
	val, err := r.do(ctx, id, op, func(h *Hub) (any, error) { return fn(h) })
	if err != nil {
		return zero, err
	}
	return val.(T), nil
}

// CreateHub allocates a new hub owned by owner and starts it.
func (r *Registry) CreateHub(ctx context.Context, owner types.Uid, name string) (*types.Hub, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.shuttingDown.Load() {
		return nil, errShuttingDown()
	}
	if owner.IsZero() {
		return nil, types.ErrPermissionDenied
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	state := initHub(r.newUid, r.now(), owner, name)
	if err := store.Hubs.Create(state); err != nil {
		return nil, asStorageErr(err)
	}

	h := r.start(state.Clone())
	logs.Info.Printf("hub[%s] created by %s", h.id, owner)
	return state, nil
}

// Shutdown stops all hubs. Commands already accepted are executed before a hub exits.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.shuttingDown.Store(true)

	var hubs []*Hub
	r.hubs.Range(func(_, v any) bool {
		e := v.(*hubEntry)
		<-e.ready
		if e.hub != nil {
			hubs = append(hubs, e.hub)
		}
		return true
	})

	done := make(chan bool, len(hubs))
	for _, h := range hubs {
		select {
		case h.exit <- &shutDown{done: done}:
		case <-h.done:
			done <- true
		}
	}

	deadline := time.After(timeout)
	for range hubs {
		select {
		case <-done:
		case <-deadline:
			logs.Warn.Println("registry: timeout waiting for hubs to stop")
			r.bgPool.Stop()
			return
		}
	}
	r.bgPool.Stop()
	logs.Info.Printf("registry: stopped %d hubs", len(hubs))
}

// liveCount returns the number of loaded hubs.
func (r *Registry) liveCount() int {
	count := 0
	r.hubs.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
