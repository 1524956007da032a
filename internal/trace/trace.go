// Package trace writes Chrome trace events (viewable in chrome://tracing or
// https://ui.perfetto.dev) describing how long each build step took.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink writes all following events into w, using the JSON Array Format.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	// The closing ] is optional, so we never write it.
	w.Write([]byte{'['})
}

// Enable creates $TMPDIR/rootfs.traces/<prefix>.<pid> and sinks events into
// it.
func Enable(prefix string) error {
	fn := filepath.Join(os.TempDir(), "rootfs.traces", fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

// PendingEvent is a complete event (type X) which is written once Done is
// called.
type PendingEvent struct {
	Name           string            `json:"name"`
	Categories     string            `json:"cat"`
	Type           string            `json:"ph"`
	ClockTimestamp uint64            `json:"ts"` // microseconds since program start
	Duration       uint64            `json:"dur"`
	Pid            uint64            `json:"pid"`
	Tid            uint64            `json:"tid"`
	Args           map[string]string `json:"args,omitempty"`

	start time.Time
}

// Done records the duration of the event and writes it to the sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// Event starts an event in category cat. args are key/value pairs attached to
// the event; an odd trailing key is ignored.
func Event(cat, name string, args ...string) *PendingEvent {
	pe := &PendingEvent{
		Name:           name,
		Categories:     cat,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Pid:            uint64(os.Getpid()),
		start:          time.Now(),
	}
	for i := 0; i+1 < len(args); i += 2 {
		if pe.Args == nil {
			pe.Args = make(map[string]string)
		}
		pe.Args[args[i]] = args[i+1]
	}
	return pe
}
