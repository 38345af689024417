// Package stdout is a sample implementation of an indexer plugin.
// If enabled, it writes every index event to stdout as a line of JSON. It cannot search.
package stdout

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/hubchat/chat/server/index"
)

var handler stdoutIndex

// How much to buffer the input channel.
const defaultBuffer = 32

type stdoutIndex struct {
	initialized bool
	out         io.Writer
	input       chan *index.Event
	stop        chan bool
	done        chan struct{}
}

type configType struct {
	Enabled bool `json:"enabled"`
	Buffer  int  `json:"buffer"`
}

// Init initializes the handler.
func (h *stdoutIndex) Init(jsonconf json.RawMessage) (bool, error) {
	if h.initialized {
		return false, errors.New("already initialized")
	}

	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return false, errors.New("failed to parse config: " + err.Error())
	}

	h.initialized = true

	if !config.Enabled {
		return false, nil
	}

	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}
	if h.out == nil {
		h.out = os.Stdout
	}

	h.input = make(chan *index.Event, config.Buffer)
	h.stop = make(chan bool, 1)
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		enc := json.NewEncoder(h.out)
		for {
			select {
			case evt := <-h.input:
				enc.Encode(evt)
			case <-h.stop:
				return
			}
		}
	}()

	return true, nil
}

// IsReady checks if the handler is initialized.
func (h *stdoutIndex) IsReady() bool {
	return h.input != nil
}

// Input returns a channel that the server will use to send events to.
func (h *stdoutIndex) Input() chan<- *index.Event {
	return h.input
}

// Search is not supported.
func (*stdoutIndex) Search(*index.Query) ([]index.Entry, error) {
	return nil, index.ErrNotSupported
}

// Stop terminates the handler's worker.
func (h *stdoutIndex) Stop() {
	h.stop <- true
	<-h.done
}

func init() {
	index.Register("stdout", &handler)
}
