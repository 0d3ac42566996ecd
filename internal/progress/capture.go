package progress

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// Handler receives captured output. Calls come from the capture's reader
// goroutine, one at a time, in output order.
type Handler interface {
	// Line receives every kept line, verbatim.
	Line(line string)
	// Sample receives every classified line.
	Sample(s Sample)
}

// Funcs adapts a pair of functions to Handler. Nil functions are skipped.
type Funcs struct {
	OnLine   func(string)
	OnSample func(Sample)
}

func (f Funcs) Line(line string) {
	if f.OnLine != nil {
		f.OnLine(line)
	}
}

func (f Funcs) Sample(s Sample) {
	if f.OnSample != nil {
		f.OnSample(s)
	}
}

// Tee fans out to several handlers in order.
type Tee []Handler

func (t Tee) Line(line string) {
	for _, h := range t {
		h.Line(line)
	}
}

func (t Tee) Sample(s Sample) {
	for _, h := range t {
		h.Sample(s)
	}
}

// maxLine bounds a single captured line.
const maxLine = 1 << 20

// active serializes captures: solver output is attributed to whichever run
// holds it, so only one solve may be captured per process at a time.
var active sync.Mutex

// Options configure a capture.
type Options struct {
	// PTY attaches the solver to a pseudo-terminal so it line-buffers
	// output. Falls back to a pipe when no pty is available.
	PTY bool
	// Now stamps samples; defaults to time.Now.
	Now func() time.Time
}

// Capture is an in-flight capture session.
type Capture struct {
	w    *os.File
	r    *os.File
	done chan struct{}
	once sync.Once
	err  error

	h   Handler
	now func() time.Time

	lines   int
	samples int
}

// Start acquires the process-wide capture lock, blocking while another
// capture is active, and starts draining a fresh pipe into h. The caller
// must Close the capture on every path.
func Start(h Handler, opts Options) (*Capture, error) {
	active.Lock()
	c := &Capture{h: h, now: opts.Now, done: make(chan struct{})}
	if c.now == nil {
		c.now = time.Now
	}

	var err error
	if opts.PTY {
		c.r, c.w, err = pty.Open()
		if err != nil {
			slog.Warn("pty unavailable, using pipe", "error", err)
		}
	}
	if c.w == nil {
		c.r, c.w, err = os.Pipe()
	}
	if err != nil {
		active.Unlock()
		return nil, fmt.Errorf("open capture pipe: %w", err)
	}

	go c.drain()
	return c, nil
}

// Writer returns the write end to hand to the solver as stdout and stderr.
func (c *Capture) Writer() *os.File {
	return c.w
}

// Close closes the write end, waits for the reader to drain what was
// written, and releases the capture lock. It is safe to call more than once.
func (c *Capture) Close() error {
	c.once.Do(func() {
		c.err = c.w.Close()
		<-c.done
		if err := c.r.Close(); err != nil && c.err == nil {
			c.err = err
		}
		slog.Debug("capture closed", "lines", c.lines, "samples", c.samples)
		active.Unlock()
	})
	return c.err
}

func (c *Capture) drain() {
	defer close(c.done)

	sc := bufio.NewScanner(c.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		observed := c.now()
		c.handle(strings.TrimRight(sc.Text(), "\r"), observed)
	}
	if err := sc.Err(); err != nil && !isClosedPTY(err) {
		slog.Warn("capture reader stopped", "error", err)
		// Keep draining so the writer never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, c.r)
	}
}

func (c *Capture) handle(line string, observed time.Time) {
	if line == "" || IsNoise(line) {
		return
	}
	c.lines++
	c.h.Line(line)
	if s, ok := Classify(line); ok {
		s.Stamp(observed)
		c.samples++
		c.h.Sample(s)
	}
}

// A pty master reports EIO once the slave side is closed.
func isClosedPTY(err error) bool {
	return errors.Is(err, syscall.EIO)
}
