// Package memory is an in-process full-text indexer plugin.
// Words are extracted with Unicode word segmentation, case folded and NFKC normalized.
// A message matches when it contains every word of the query. The index is lost on restart.
package memory

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hubchat/chat/server/index"
	t "github.com/hubchat/chat/server/store/types"
	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var handler = newMemoryIndex()

const (
	// How much to buffer the input channel.
	defaultBuffer = 256
	// Upper bound on search results.
	defaultMaxResults = 100
	// Messages retained per hub before the oldest are evicted.
	defaultMaxEntries = 100000
)

type configType struct {
	Enabled    bool `json:"enabled"`
	Buffer     int  `json:"buffer"`
	MaxResults int  `json:"max_results"`
	MaxEntries int  `json:"max_entries"`
}

type docKey struct {
	channel t.Uid
	seq     int
}

type hubIndex struct {
	docs  map[docKey]*index.Entry
	terms map[string]map[docKey]struct{}
	// Insertion order for eviction.
	order []docKey
}

type memoryIndex struct {
	initialized bool
	maxResults  int
	maxEntries  int

	mu   sync.RWMutex
	hubs map[t.Uid]*hubIndex

	input chan *index.Event
	stop  chan bool
	done  chan struct{}
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{
		maxResults: defaultMaxResults,
		maxEntries: defaultMaxEntries,
		hubs:       make(map[t.Uid]*hubIndex),
	}
}

// Init initializes the handler.
func (m *memoryIndex) Init(jsonconf json.RawMessage) (bool, error) {
	if m.initialized {
		return false, errors.New("already initialized")
	}

	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return false, errors.New("failed to parse config: " + err.Error())
	}

	m.initialized = true

	if !config.Enabled {
		return false, nil
	}

	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}
	if config.MaxResults > 0 {
		m.maxResults = config.MaxResults
	}
	if config.MaxEntries > 0 {
		m.maxEntries = config.MaxEntries
	}

	m.input = make(chan *index.Event, config.Buffer)
	m.stop = make(chan bool, 1)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			select {
			case evt := <-m.input:
				m.apply(evt)
			case <-m.stop:
				return
			}
		}
	}()

	return true, nil
}

// IsReady checks if the handler is initialized.
func (m *memoryIndex) IsReady() bool {
	return m.input != nil
}

// Input returns a channel that the server will use to send events to.
func (m *memoryIndex) Input() chan<- *index.Event {
	return m.input
}

// Stop terminates the handler's worker.
func (m *memoryIndex) Stop() {
	m.stop <- true
	<-m.done
}

func (m *memoryIndex) apply(evt *index.Event) {
	switch evt.What {
	case index.ActIndex:
		if evt.Entry != nil {
			m.add(evt.Entry)
		}
	case index.ActPurge:
		if evt.Channel.IsZero() {
			m.purgeHub(evt.Hub)
		} else {
			m.purgeChannel(evt.Hub, evt.Channel)
		}
	}
}

func (m *memoryIndex) add(e *index.Entry) {
	words := tokenize(e.Content)
	if len(words) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hi := m.hubs[e.Hub]
	if hi == nil {
		hi = &hubIndex{
			docs:  make(map[docKey]*index.Entry),
			terms: make(map[string]map[docKey]struct{}),
		}
		m.hubs[e.Hub] = hi
	}

	key := docKey{channel: e.Channel, seq: e.SeqId}
	if _, dup := hi.docs[key]; dup {
		return
	}
	entry := *e
	hi.docs[key] = &entry
	hi.order = append(hi.order, key)
	for _, w := range words {
		set := hi.terms[w]
		if set == nil {
			set = make(map[docKey]struct{})
			hi.terms[w] = set
		}
		set[key] = struct{}{}
	}

	for len(hi.docs) > m.maxEntries && len(hi.order) > 0 {
		hi.remove(hi.order[0])
		hi.order = hi.order[1:]
	}
}

// remove drops the document from docs and terms. Caller updates order.
func (hi *hubIndex) remove(key docKey) {
	e := hi.docs[key]
	if e == nil {
		return
	}
	delete(hi.docs, key)
	for _, w := range tokenize(e.Content) {
		if set := hi.terms[w]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(hi.terms, w)
			}
		}
	}
}

func (m *memoryIndex) purgeChannel(hub, channel t.Uid) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hi := m.hubs[hub]
	if hi == nil {
		return
	}
	kept := hi.order[:0]
	for _, key := range hi.order {
		if key.channel == channel {
			hi.remove(key)
		} else {
			kept = append(kept, key)
		}
	}
	hi.order = kept
	if len(hi.docs) == 0 {
		delete(m.hubs, hub)
	}
}

func (m *memoryIndex) purgeHub(hub t.Uid) {
	m.mu.Lock()
	delete(m.hubs, hub)
	m.mu.Unlock()
}

// Search returns entries containing every word of the query, newest first.
func (m *memoryIndex) Search(q *index.Query) ([]index.Entry, error) {
	words := tokenize(q.Text)
	if len(words) == 0 || len(q.Channels) == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 || limit > m.maxResults {
		limit = m.maxResults
	}
	allowed := make(map[t.Uid]bool, len(q.Channels))
	for _, ch := range q.Channels {
		allowed[ch] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hi := m.hubs[q.Hub]
	if hi == nil {
		return nil, nil
	}

	// Start from the rarest word.
	sort.Slice(words, func(i, j int) bool { return len(hi.terms[words[i]]) < len(hi.terms[words[j]]) })

	var found []index.Entry
	for key := range hi.terms[words[0]] {
		if !allowed[key.channel] {
			continue
		}
		match := true
		for _, w := range words[1:] {
			if _, ok := hi.terms[w][key]; !ok {
				match = false
				break
			}
		}
		if match {
			found = append(found, *hi.docs[key])
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.After(found[j].CreatedAt)
		}
		if found[i].Channel != found[j].Channel {
			return found[i].Channel > found[j].Channel
		}
		return found[i].SeqId > found[j].SeqId
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// tokenize splits text into unique normalized words.
func tokenize(text string) []string {
	folded := norm.NFKC.String(cases.Fold().String(text))

	var words []string
	seen := make(map[string]bool)
	state := -1
	var word string
	for len(folded) > 0 {
		word, folded, state = uniseg.FirstWordInString(folded, state)
		if !isWord(word) || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	return words
}

// isWord checks if the segment contains a letter or a digit.
func isWord(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func init() {
	index.Register("memory", handler)
}
