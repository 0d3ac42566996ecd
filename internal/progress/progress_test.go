package progress

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	lines   []string
	samples []Sample
}

func (c *collector) Line(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *collector) Sample(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
}

func fixedNow() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestClassifyInteriorPointThenRuntime(t *testing.T) {
	var c collector
	err := Feed(strings.NewReader("3  1.2e+02  1.1e+02  5.0e-02  1e-03  1e-04\nRuntime: 12.5\n"), &c, fixedNow())
	require.NoError(t, err)

	require.Len(t, c.samples, 2)
	first := c.samples[0]
	require.NotNil(t, first.Iter)
	assert.Equal(t, 3, *first.Iter)
	assert.Equal(t, 120.0, *first.PCost)
	assert.Equal(t, 110.0, *first.DCost)
	assert.Equal(t, 0.05, *first.Gap)
	assert.Equal(t, 1e-3, *first.PRes)
	assert.Equal(t, 1e-4, *first.DRes)
	assert.Nil(t, first.RuntimeSeconds)

	second := c.samples[1]
	assert.Nil(t, second.Iter)
	require.NotNil(t, second.RuntimeSeconds)
	assert.Equal(t, 12.5, *second.RuntimeSeconds)
	assert.Less(t, first.TS, second.TS)

	assert.Len(t, c.lines, 2)
}

func TestClassifyECOSRowWithTrailingColumns(t *testing.T) {
	s, ok := Classify(" 12  +3.612e+01  +3.611e+01  +1e-02  2e-08  3e-09  1e-05  2e-04  0.9890  1e-04   1  0  0 |  0  0")
	require.True(t, ok)
	assert.Equal(t, 12, *s.Iter)
	assert.Equal(t, 36.12, *s.PCost)
	assert.Equal(t, 3e-9, *s.DRes)
}

func TestClassifyGenericHeuristic(t *testing.T) {
	s, ok := Classify("7   0.5  NA  1.5  2.5")
	require.True(t, ok)
	assert.Equal(t, 7, *s.Iter)
	assert.Equal(t, 0.5, *s.PCost)
	assert.Equal(t, 1.5, *s.DCost)
	assert.Equal(t, 2.5, *s.Gap)
	assert.Nil(t, s.PRes)

	_, ok = Classify("7   0.5  NA  1.5")
	assert.False(t, ok, "needs three numbers after the leading integer")
}

func TestClassifyBranchAndBoundRows(t *testing.T) {
	s, ok := Classify(" T     123      45        67  12.34%   1.5             2.0               25.00%      10      3      0      4567     3.2s")
	require.True(t, ok)
	assert.Equal(t, "T", s.Source)
	assert.Equal(t, 123, *s.Iter)
	assert.Equal(t, 1.5, *s.BestBound)
	assert.Equal(t, 2.0, *s.BestInt)
	assert.InDelta(t, 0.25, *s.Gap, 1e-12)
	assert.Equal(t, 3.2, *s.RuntimeSeconds)

	s, ok = Classify(" R       0       0         0   0.00%   -inf            inf                  inf        0      0      0         0     0.0s")
	require.True(t, ok)
	assert.Nil(t, s.BestBound)
	assert.Nil(t, s.BestInt)
	assert.Nil(t, s.Gap)
	assert.Equal(t, 0.0, *s.RuntimeSeconds)

	s, ok = Classify(" H       0       0         0   0.00%   Large           NA                   NA         0      0      0         0     1.0s")
	require.True(t, ok)
	assert.Nil(t, s.BestBound)
}

func TestClassifyIgnoresProse(t *testing.T) {
	for _, line := range []string{
		"Running HiGHS 1.7.0",
		"Problem name: problem",
		"Optimizer started.",
		"Runtime: soon",
		"",
	} {
		_, ok := Classify(line)
		assert.False(t, ok, line)
	}
}

func TestNoiseFiltered(t *testing.T) {
	var c collector
	in := strings.Join([]string{
		`127.0.0.1:5000 - "GET /runs/abc/progress HTTP/1.1" 200 OK`,
		`[GIN] 2026/01/01 - 10:00:00 | 200 | 1ms | ::1 | GET "/runs"`,
		`INFO: "POST /runs HTTP/1.1" 202`,
		`Optimizer terminated.`,
	}, "\n")
	require.NoError(t, Feed(strings.NewReader(in), &c, nil))
	assert.Equal(t, []string{"Optimizer terminated."}, c.lines)
}

func TestCaptureDrainsPipe(t *testing.T) {
	var c collector
	capt, err := Start(&c, Options{Now: fixedNow()})
	require.NoError(t, err)

	w := capt.Writer()
	for i := 0; i < 500; i++ {
		_, err := fmt.Fprintf(w, "%d  1.0e+00  2.0e+00  3.0e-01  1e-03  1e-04\n", i)
		require.NoError(t, err)
	}
	fmt.Fprintln(w, "Runtime: 1.5")
	require.NoError(t, capt.Close())
	require.NoError(t, capt.Close(), "Close is idempotent")

	require.Len(t, c.lines, 501)
	require.Len(t, c.samples, 501)
	for i := 0; i < 500; i++ {
		assert.Equal(t, i, *c.samples[i].Iter)
	}
	for i := 1; i < len(c.samples); i++ {
		assert.Less(t, c.samples[i-1].TS, c.samples[i].TS)
	}
}

func TestCaptureIsExclusive(t *testing.T) {
	first, err := Start(&collector{}, Options{})
	require.NoError(t, err)

	acquired := make(chan *Capture)
	go func() {
		second, err := Start(&collector{}, Options{})
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second capture started while first active")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Close())
	select {
	case second := <-acquired:
		require.NoError(t, second.Close())
	case <-time.After(5 * time.Second):
		t.Fatal("second capture never started")
	}
}

func TestCapturePTYMode(t *testing.T) {
	var c collector
	capt, err := Start(&c, Options{PTY: true})
	require.NoError(t, err)
	fmt.Fprintln(capt.Writer(), "Runtime: 2")
	require.NoError(t, capt.Close())

	require.Len(t, c.samples, 1)
	assert.Equal(t, 2.0, *c.samples[0].RuntimeSeconds)
}

func TestSampleTimeRoundTrip(t *testing.T) {
	var s Sample
	at := time.Date(2026, 3, 4, 5, 6, 7, 500_000_000, time.UTC)
	s.Stamp(at)
	assert.WithinDuration(t, at, s.Time(), time.Millisecond)
}

func TestTeeAndFuncs(t *testing.T) {
	var a collector
	var n int
	h := Tee{&a, Funcs{OnSample: func(Sample) { n++ }}}
	require.NoError(t, Feed(strings.NewReader("Runtime: 3\nhello\n"), h, nil))
	assert.Len(t, a.lines, 2)
	assert.Equal(t, 1, n)
}
