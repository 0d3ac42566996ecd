package progress

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// Feed runs every line of r through the same filter and classifier as a
// capture, without the capture lock. It is used to replay saved logs.
func Feed(r io.Reader, h Handler, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	c := &Capture{h: h, now: now}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		c.handle(strings.TrimRight(sc.Text(), "\r"), now())
	}
	return sc.Err()
}
