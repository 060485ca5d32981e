package callback

import (
	"fmt"
	"io"
	"sync"

	"github.com/ethgate/gateway/log"
)

// Stdout is a single background writer shared by every callback configured
// to dispatch to stdout rather than an HTTP endpoint. Writers push lines
// over a channel buffered to 256 lines, so concurrent callbacks do not
// interleave badly with each other; the channel is not unbounded, and once
// 256 lines are waiting, PushLine blocks until the writer catches up.
// Ordering is preserved per-pusher, not across pushers.
type Stdout struct {
	lines chan string
	once  sync.Once
}

// NewStdout starts the background writer, appending "\n" to every pushed
// line before writing it to w.
func NewStdout(w io.Writer) *Stdout {
	s := &Stdout{lines: make(chan string, 256)}
	go s.run(w)
	return s
}

func (s *Stdout) run(w io.Writer) {
	for line := range s.lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			log.Warnw("stdout callback write failed", "error", err.Error())
		}
	}
}

// PushLine enqueues line for writing. It never blocks the caller beyond
// filling the internal buffer, and never returns an error: a failed stdout
// write is logged and dropped rather than surfaced, since there is no
// meaningful retry for a broken stdout handle.
func (s *Stdout) PushLine(line string) {
	s.lines <- line
}

// Close stops accepting further lines. Lines already queued are still
// written by the background writer, but Close does not wait for them.
// Calling it more than once is harmless; it must only be called after every
// caller holding a reference to Stdout has stopped pushing, since a push
// after Close panics.
func (s *Stdout) Close() {
	s.once.Do(func() { close(s.lines) })
}
