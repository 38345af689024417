/******************************************************************************
 *
 *  Description :
 *
 *    A live hub: a goroutine which owns the state of a single hub and
 *    executes commands against it one at a time.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

// Returned by Hub.call when the hub has stopped accepting commands. The caller should wait
// for the hub to exit and look it up again.
var errHubGone = errors.New("hub is unloaded")

// Reasons for stopping a hub.
const (
	// Hub was idle.
	StopNone = iota
	// Hub was destroyed by the owner.
	StopDeleted
	// Server is shutting down.
	StopShutdown
)

// Subscriber buffer. Subscribers which fall this far behind are disconnected.
const liveQueueLen = 64

type hubReply struct {
	val any
	err error
}

// hubCmd is a unit of work executed on the hub goroutine.
type hubCmd struct {
	// Operation name for metrics and logging.
	op   string
	exec func() (any, error)
	// Buffered at 1 so the hub never blocks on an abandoned caller.
	reply chan hubReply
}

// shutDown is a request to stop the hub.
type shutDown struct {
	// Channel to report back completion of hub shutdown. Could be nil.
	done chan<- bool
}

// liveSub is a live feed subscription of one user.
type liveSub struct {
	user types.Uid
	// Closed by the hub when the subscription ends.
	events chan *HubEvent
}

// Hub is a loaded hub. Fields marked as owned by the run loop must not be accessed elsewhere.
type Hub struct {
	id  types.Uid
	reg *Registry
	// Registry entry this hub was published under.
	entry *hubEntry

	// Authoritative state. Owned by the run loop.
	state *types.Hub
	// Last assigned message SeqId per channel. Owned by the run loop.
	lastSeq map[types.Uid]int
	// Live feed subscribers. Owned by the run loop.
	subs map[*liveSub]struct{}
	// Set by destroy. Owned by the run loop.
	deleted bool

	// Inbound commands, bounded.
	queue chan *hubCmd
	// Live feed subscriptions being cancelled.
	unsub chan *liveSub
	// Request to stop, unbuffered.
	exit chan *shutDown

	// Guards closed and sends to queue.
	qlock  sync.RWMutex
	closed bool

	// Closed when the run loop exits.
	done chan struct{}
}

func newHub(reg *Registry, state *types.Hub, lastSeq map[types.Uid]int) *Hub {
	seqs := make(map[types.Uid]int, len(state.Channels))
	for id, ch := range state.Channels {
		seqs[id] = max(lastSeq[id], ch.BurnedSeq)
	}
	return &Hub{
		id:      state.Id,
		reg:     reg,
		state:   state,
		lastSeq: seqs,
		subs:    make(map[*liveSub]struct{}),
		queue:   make(chan *hubCmd, reg.queueLen),
		unsub:   make(chan *liveSub, 16),
		exit:    make(chan *shutDown),
		done:    make(chan struct{}),
	}
}

// call submits a command and waits for the result. A full queue fails immediately with
// types.ErrBusy. If ctx is done before the reply arrives the reply is abandoned but the
// command still runs.
func (h *Hub) call(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := &hubCmd{op: op, exec: fn, reply: make(chan hubReply, 1)}

	h.qlock.RLock()
	if h.closed {
		h.qlock.RUnlock()
		return nil, errHubGone
	}
	select {
	case h.queue <- cmd:
	default:
		h.qlock.RUnlock()
		statsBusyRejections.Inc()
		statsCommand(op, types.ErrBusy, time.Now())
		return nil, types.ErrBusy
	}
	h.qlock.RUnlock()

	select {
	case r := <-cmd.reply:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// unsubscribe cancels a live feed subscription. Safe to call after the hub has exited.
func (h *Hub) unsubscribe(sub *liveSub) {
	select {
	case h.unsub <- sub:
	case <-h.done:
	}
}

func (h *Hub) run() {
	// Unloads the hub after a period of inactivity.
	keepAlive := h.reg.idleTimeout
	killTimer := time.NewTimer(time.Hour)
	killTimer.Stop()

	resetIdle := func() {
		if keepAlive > 0 && len(h.subs) == 0 {
			killTimer.Reset(keepAlive)
		}
	}

	defer close(h.done)

	resetIdle()
	for {
		select {
		case cmd := <-h.queue:
			killTimer.Stop()
			h.handle(cmd)
			if h.deleted {
				h.terminate(StopDeleted, nil)
				return
			}
			resetIdle()

		case sub := <-h.unsub:
			h.dropSub(sub)
			resetIdle()

		case <-killTimer.C:
			if h.tryUnload() {
				return
			}
			resetIdle()

		case sd := <-h.exit:
			killTimer.Stop()
			h.terminate(StopShutdown, sd)
			return
		}
	}
}

func (h *Hub) handle(cmd *hubCmd) {
	started := time.Now()
	val, err := cmd.exec()
	statsCommand(cmd.op, err, started)
	if errors.Is(err, types.ErrStorage) {
		logs.Warn.Printf("hub[%s] %s failed: %v", h.id, cmd.op, err)
	}
	cmd.reply <- hubReply{val: val, err: err}
}

// tryUnload stops the hub if nobody is using it. Returns true if the hub was stopped.
func (h *Hub) tryUnload() bool {
	if len(h.subs) > 0 {
		return false
	}

	h.qlock.Lock()
	if len(h.queue) > 0 {
		h.qlock.Unlock()
		return false
	}
	h.closed = true
	h.qlock.Unlock()

	h.reg.unregister(h)
	logs.Info.Printf("hub[%s] unloaded after inactivity", h.id)
	return true
}

// terminate stops accepting commands, settles the ones already accepted and releases subscribers.
func (h *Hub) terminate(reason int, sd *shutDown) {
	h.qlock.Lock()
	h.closed = true
	h.qlock.Unlock()

	// Commands accepted before the hub was closed.
loop:
	for {
		select {
		case cmd := <-h.queue:
			if reason == StopDeleted {
				cmd.reply <- hubReply{err: types.ErrNotFound}
			} else {
				h.handle(cmd)
			}
		default:
			break loop
		}
	}

	for sub := range h.subs {
		h.dropSub(sub)
	}

	h.reg.unregister(h)

	if sd != nil && sd.done != nil {
		sd.done <- true
	}
}

// mutate applies fn to a copy of the state, persists the copy and makes it current.
// If fn or the write fails the current state is not changed.
func (h *Hub) mutate(fn func(next *types.Hub) error) error {
	next := h.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = h.reg.now()
	if err := store.Hubs.Update(next); err != nil {
		return asStorageErr(err)
	}
	h.state = next
	return nil
}

// subscribe adds a live feed subscriber.
func (h *Hub) addSub(user types.Uid) *liveSub {
	sub := &liveSub{user: user, events: make(chan *HubEvent, liveQueueLen)}
	h.subs[sub] = struct{}{}
	statsLiveSubscribers.Inc()
	return sub
}

func (h *Hub) dropSub(sub *liveSub) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.events)
	statsLiveSubscribers.Dec()
}

// dropUserSubs ends live feed subscriptions of a user who is no longer a member.
func (h *Hub) dropUserSubs(user types.Uid) {
	for sub := range h.subs {
		if sub.user == user {
			h.dropSub(sub)
		}
	}
}

// broadcast sends the event to every subscriber allowed to see it. Slow subscribers are dropped.
func (h *Hub) broadcast(evt *HubEvent) {
	if len(h.subs) == 0 {
		return
	}
	evt.Hub = h.id
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.reg.now()
	}
	for sub := range h.subs {
		if !h.canSee(sub.user, evt) {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			logs.Warn.Printf("hub[%s] live subscriber %s is too slow, dropped", h.id, sub.user)
			h.dropSub(sub)
		}
	}
}
