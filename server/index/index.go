// Package index contains interfaces to be implemented by search indexer plugins.
// Indexing is best effort: new messages are dropped when a plugin cannot keep up.
// Purges are never dropped, they are delivered in order from a separate queue.
package index

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	t "github.com/hubchat/chat/server/store/types"
)

// Index actions
const (
	// New message persisted.
	ActIndex = "index"
	// Channel or hub deleted.
	ActPurge = "purge"
)

// ErrNotSupported is returned by plugins which accept messages but cannot search them.
var ErrNotSupported = errors.New("index: search not supported")

// DefaultSearchLimit is used when the query does not specify a limit.
const DefaultSearchLimit = 20

// Entry is a copy of a persisted message.
type Entry struct {
	Hub       t.Uid     `json:"hub"`
	Channel   t.Uid     `json:"channel"`
	SeqId     int       `json:"seq"`
	From      t.Uid     `json:"from"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"ts"`
}

// Event is a unit of work for the indexer.
type Event struct {
	// ActIndex or ActPurge.
	What string `json:"what"`
	// Message to index, ActIndex only.
	Entry *Entry `json:"entry,omitempty"`
	// Hub to purge, ActPurge only.
	Hub t.Uid `json:"hub,omitempty"`
	// Channel to purge. Zero means the entire hub.
	Channel t.Uid `json:"channel,omitempty"`
}

// Query is a search request scoped to one hub.
type Query struct {
	Hub t.Uid
	// Channels to search in. Messages in other channels are never returned.
	Channels []t.Uid
	Text     string
	Limit    int
}

// Handler is an interface which must be implemented by indexer plugins.
type Handler interface {
	// Init initializes the handler.
	Init(jsonconf json.RawMessage) (bool, error)

	// IsReady checks if the handler is initialized.
	IsReady() bool

	// Input returns a channel that the server will use to send events to.
	// The event will be dropped if the channel blocks.
	Input() chan<- *Event

	// Search returns matching entries newest first, or ErrNotSupported.
	Search(q *Query) ([]Entry, error)

	// Stop terminates the handler's worker.
	Stop()
}

type configType struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

var handlers map[string]Handler

// Handlers in the order of initialization.
var enabled []Handler

// Length of the queue of pending purges.
const purgeQueueLen = 128

var (
	// Guards purgeQueue against Stop.
	purgeMu sync.RWMutex
	// Purge events waiting for delivery. Nil when no handler is enabled or after Stop.
	purgeQueue chan *Event
	// Closed when the purge dispatcher exits.
	purgeDone chan struct{}
)

// Register an indexer plugin.
func Register(name string, hnd Handler) {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}

	if hnd == nil {
		panic("Register: indexer is nil")
	}
	if _, dup := handlers[name]; dup {
		panic("Register: called twice for indexer " + name)
	}
	handlers[name] = hnd
}

// Init initializes registered handlers.
func Init(jsconfig json.RawMessage) ([]string, error) {
	if len(jsconfig) == 0 {
		return nil, nil
	}

	var config []configType
	if err := json.Unmarshal(jsconfig, &config); err != nil {
		return nil, errors.New("failed to parse config: " + err.Error())
	}

	var names []string
	for _, cc := range config {
		hnd := handlers[cc.Name]
		if hnd == nil {
			continue
		}
		ok, err := hnd.Init(cc.Config)
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, cc.Name)
			enabled = append(enabled, hnd)
		}
	}

	if len(enabled) > 0 {
		purgeMu.Lock()
		purgeQueue = make(chan *Event, purgeQueueLen)
		purgeDone = make(chan struct{})
		go dispatchPurges(purgeQueue, purgeDone)
		purgeMu.Unlock()
	}

	return names, nil
}

// dispatchPurges delivers purge events, waiting for each handler to accept them.
func dispatchPurges(queue <-chan *Event, done chan<- struct{}) {
	defer close(done)
	for evt := range queue {
		for _, hnd := range enabled {
			if hnd.IsReady() {
				hnd.Input() <- evt
			}
		}
	}
}

// purge queues the event for delivery. Blocks only when the purge queue is full.
func purge(evt *Event) {
	purgeMu.RLock()
	defer purgeMu.RUnlock()
	if purgeQueue != nil {
		purgeQueue <- evt
	}
}

func send(evt *Event) {
	for _, hnd := range enabled {
		if !hnd.IsReady() {
			continue
		}

		// Send without delay or skip.
		select {
		case hnd.Input() <- evt:
		default:
		}
	}
}

// Index queues a persisted message for indexing.
func Index(e *Entry) {
	send(&Event{What: ActIndex, Entry: e})
}

// PurgeChannel drops all entries of the channel.
func PurgeChannel(hub, channel t.Uid) {
	purge(&Event{What: ActPurge, Hub: hub, Channel: channel})
}

// PurgeHub drops all entries of the hub.
func PurgeHub(hub t.Uid) {
	purge(&Event{What: ActPurge, Hub: hub})
}

// Search runs the query against the first enabled handler which supports search.
func Search(q *Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	for _, hnd := range enabled {
		if !hnd.IsReady() {
			continue
		}
		res, err := hnd.Search(q)
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		return res, err
	}
	return nil, ErrNotSupported
}

// Stop delivers pending purges, then stops all indexers.
func Stop() {
	purgeMu.Lock()
	if purgeQueue != nil {
		close(purgeQueue)
		<-purgeDone
		purgeQueue = nil
	}
	purgeMu.Unlock()

	for _, hnd := range enabled {
		if hnd.IsReady() {
			// Will potentially block
			hnd.Stop()
		}
	}
}
