package main

// In-memory implementations of the store mappers for tests which need state to persist
// across commands and reloads.

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hubchat/chat/server/store"
	"github.com/hubchat/chat/server/store/types"
)

type memHubs struct {
	mu   sync.Mutex
	data map[types.Uid][]byte
	// Number of Update calls.
	updates int
	// If set, Update fails with this error.
	failUpdate error
}

func (m *memHubs) Create(hub *types.Hub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[hub.Id]; ok {
		return types.ErrDuplicate
	}
	return m.put(hub)
}

func (m *memHubs) put(hub *types.Hub) error {
	data, err := store.EncodeHub(hub)
	if err != nil {
		return err
	}
	m.data[hub.Id] = data
	return nil
}

func (m *memHubs) Get(id types.Uid) (*types.Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return store.DecodeHub(id, data)
}

func (m *memHubs) Update(hub *types.Hub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.data[hub.Id]; !ok {
		return types.ErrNotFound
	}
	m.updates++
	return m.put(hub)
}

func (m *memHubs) Delete(id types.Uid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memHubs) setFailUpdate(err error) {
	m.mu.Lock()
	m.failUpdate = err
	m.mu.Unlock()
}

type chanKey struct {
	hub, channel types.Uid
}

type memMessages struct {
	mu   sync.Mutex
	logs map[chanKey][]types.Message
	// If set, Save fails with this error.
	failSave error
}

func (m *memMessages) Save(msg *types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	key := chanKey{msg.Hub, msg.Channel}
	for _, old := range m.logs[key] {
		if old.SeqId == msg.SeqId {
			return types.ErrDuplicate
		}
	}
	m.logs[key] = append(m.logs[key], *msg)
	return nil
}

func (m *memMessages) GetAll(hub, channel types.Uid, opts *types.BrowseOpt) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Message
	log := m.logs[chanKey{hub, channel}]
	for i := len(log) - 1; i >= 0; i-- {
		if opts.Before > 0 && log[i].SeqId > opts.Before {
			continue
		}
		out = append(out, log[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeqId > out[j].SeqId })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memMessages) DeleteAll(hub, channel types.Uid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, chanKey{hub, channel})
	return nil
}

func (m *memMessages) LastSeq(hub types.Uid) (map[types.Uid]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.Uid]int)
	for key, log := range m.logs {
		if key.hub != hub {
			continue
		}
		for _, msg := range log {
			if msg.SeqId > out[key.channel] {
				out[key.channel] = msg.SeqId
			}
		}
	}
	return out, nil
}

func (m *memMessages) count(hub, channel types.Uid) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs[chanKey{hub, channel}])
}

func (m *memMessages) setFailSave(err error) {
	m.mu.Lock()
	m.failSave = err
	m.mu.Unlock()
}

type memInvites struct {
	mu   sync.Mutex
	data map[string]types.Invite
	// If set, Use fails with this error.
	failUse error
}

func (m *memInvites) Create(inv *types.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[inv.Token]; ok {
		return types.ErrDuplicate
	}
	m.data[inv.Token] = *inv
	return nil
}

func (m *memInvites) Get(token string) (*types.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.data[token]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &inv, nil
}

// Use increments the counter without checking the cap first, so tests can catch
// redemptions which skip the lock.
func (m *memInvites) Use(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUse != nil {
		return m.failUse
	}
	inv, ok := m.data[token]
	if !ok {
		return types.ErrNotFound
	}
	inv.Uses++
	m.data[token] = inv
	return nil
}

func (m *memInvites) Delete(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[token]; !ok {
		return types.ErrNotFound
	}
	delete(m.data, token)
	return nil
}

func (m *memInvites) ForHub(hub types.Uid) ([]types.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Invite
	for _, inv := range m.data {
		if inv.Hub == hub {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (m *memInvites) uses(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[token].Uses
}

type memStore struct {
	hubs     *memHubs
	messages *memMessages
	invites  *memInvites
}

// Fixed clock for tests.
var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// setupMemStore replaces the store mappers with in-memory ones for the duration of the test.
func setupMemStore(t *testing.T) *memStore {
	t.Helper()
	ms := &memStore{
		hubs:     &memHubs{data: make(map[types.Uid][]byte)},
		messages: &memMessages{logs: make(map[chanKey][]types.Message)},
		invites:  &memInvites{data: make(map[string]types.Invite)},
	}
	oldHubs, oldMessages, oldInvites := store.Hubs, store.Messages, store.Invites
	store.Hubs, store.Messages, store.Invites = ms.hubs, ms.messages, ms.invites
	t.Cleanup(func() {
		store.Hubs, store.Messages, store.Invites = oldHubs, oldMessages, oldInvites
	})
	return ms
}

// Ids are unique across all registries of the test binary, so process-wide state like
// the search index never sees an id twice, even with -count.
var testUids atomic.Uint64

func init() {
	testUids.Store(1000)
}

// newTestRegistry makes a registry with sequential ids and a fixed clock.
func newTestRegistry(t *testing.T, cfg registryConfig) *Registry {
	t.Helper()
	if cfg.IdleHubTimeout == 0 {
		cfg.IdleHubTimeout = -1
	}
	r := newRegistry(cfg)
	r.newUid = func() types.Uid { return types.Uid(testUids.Add(1)) }
	r.now = func() time.Time { return testNow }
	t.Cleanup(func() { r.Shutdown(time.Second) })
	return r
}

var errTestStorage = errors.New("disk on fire")
