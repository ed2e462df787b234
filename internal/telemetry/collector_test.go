package telemetry_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CK6170/motebridge/internal/telemetry"
	"github.com/CK6170/motebridge/internal/testutil"
	"github.com/CK6170/motebridge/serial"
)

const pollInterval = 5 * time.Millisecond

type fixture struct {
	bus   *testutil.FakeBus
	state *telemetry.State
	links []*serial.Link
	col   *telemetry.Collector
}

func newFixture(t *testing.T, cfg telemetry.CollectorConfig, names ...string) *fixture {
	t.Helper()
	f := &fixture{bus: testutil.NewFakeBus(), state: telemetry.NewState(0, 0)}
	links := make([]telemetry.Link, 0, len(names))
	for _, n := range names {
		l := serial.NewLink(serial.LinkConfig{Name: n, Baud: 38400}, f.bus.Open, nil)
		f.links = append(f.links, l)
		links = append(links, l)
	}
	cfg.PollInterval = pollInterval
	f.col = telemetry.NewCollector(f.state, telemetry.NewAggregator(f.state), links, cfg, zap.NewNop())
	t.Cleanup(func() { f.col.Stop() })
	return f
}

func TestCollector_CollectsFromAllDevices(t *testing.T) {
	f := newFixture(t, telemetry.CollectorConfig{}, "a", "b")
	require.True(t, f.col.Start())
	assert.True(t, f.col.Running())

	f.bus.Port("a").Feed("12.5\nhel")
	f.bus.Port("b").Feed("34.2\n")
	f.bus.Port("a").Feed("lo\n")

	require.Eventually(t, func() bool { return len(f.state.Log()) == 3 }, time.Second, pollInterval)
	assert.ElementsMatch(t, []string{"12.5", "34.2", "hello"}, f.state.Log())
	assert.Len(t, f.state.Series(), 2)
}

func TestCollector_StartStopAreIdempotent(t *testing.T) {
	f := newFixture(t, telemetry.CollectorConfig{}, "a")

	assert.False(t, f.col.Stop(), "stop while stopped")
	assert.True(t, f.col.Start())
	assert.False(t, f.col.Start(), "start while running")
	assert.Equal(t, 1, f.bus.Opens("a"))

	assert.True(t, f.col.Stop())
	assert.False(t, f.col.Running())
	assert.False(t, f.links[0].IsOpen())
	assert.True(t, f.bus.Port("a").Closed())
}

func TestCollector_StartResetsBuffers(t *testing.T) {
	f := newFixture(t, telemetry.CollectorConfig{}, "a")
	require.True(t, f.col.Start())
	f.bus.Port("a").Feed("1\n")
	require.Eventually(t, func() bool { return len(f.state.Log()) == 1 }, time.Second, pollInterval)
	f.col.Stop()

	f.col.Start()
	assert.Empty(t, f.state.Log())
	assert.Empty(t, f.state.Series())
}

func TestCollector_StopIsQuiescent(t *testing.T) {
	f := newFixture(t, telemetry.CollectorConfig{}, "a")
	require.True(t, f.col.Start())
	f.bus.Port("a").Feed("1\n")
	require.Eventually(t, func() bool { return len(f.state.Log()) == 1 }, time.Second, pollInterval)

	require.True(t, f.col.Stop())
	before := f.state.Snapshot()
	reads := f.bus.Port("a").Reads()

	// Data arriving after Stop never reaches State, and nobody polls it.
	f.bus.Port("a").Feed("2\n3\n")
	time.Sleep(5 * pollInterval)
	for i := 0; i < 3; i++ {
		_, err := f.links[0].PollAvailable()
		assert.ErrorIs(t, err, serial.ErrDeviceUnavailable)
	}

	after := f.state.Snapshot()
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, before.Log, after.Log)
	assert.Equal(t, reads, f.bus.Port("a").Reads())
}

func TestCollector_RetriesUnavailableDevice(t *testing.T) {
	var failures atomic.Int32
	f := newFixture(t, telemetry.CollectorConfig{
		OnDeviceError: func(device string, err error) {
			if errors.Is(err, serial.ErrDeviceUnavailable) {
				failures.Add(1)
			}
		},
	}, "a", "b")
	f.bus.Fail("a", errors.New("no such device"))

	require.True(t, f.col.Start())
	f.bus.Port("b").Feed("from-b\n")
	require.Eventually(t, func() bool { return len(f.state.Log()) == 1 }, time.Second, pollInterval)
	require.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, pollInterval)

	f.bus.Fail("a", nil)
	f.bus.Port("a").Feed("from-a\n")
	require.Eventually(t, func() bool { return len(f.state.Log()) == 2 }, time.Second, pollInterval)
}

func TestCollector_OnLinesHook(t *testing.T) {
	var mu sync.Mutex
	var got []string
	f := newFixture(t, telemetry.CollectorConfig{
		OnLines: func(lines []string) {
			mu.Lock()
			got = append(got, lines...)
			mu.Unlock()
		},
	}, "a")
	require.True(t, f.col.Start())
	f.bus.Port("a").Feed("x\ny\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, pollInterval)
}

// countingLink records how many PollAvailable calls overlap.
type countingLink struct {
	name   string
	open   atomic.Bool
	active atomic.Int32
	max    atomic.Int32
}

func (l *countingLink) Name() string { return l.name }
func (l *countingLink) Open() error { l.open.Store(true); return nil }
func (l *countingLink) Close() error { l.open.Store(false); return nil }
func (l *countingLink) IsOpen() bool { return l.open.Load() }
func (l *countingLink) PollAvailable() ([]byte, error) {
	n := l.active.Add(1)
	for {
		m := l.max.Load()
		if n <= m || l.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	l.active.Add(-1)
	return nil, nil
}

func TestCollector_NeverRunsTwoPollers(t *testing.T) {
	link := &countingLink{name: "a"}
	st := telemetry.NewState(0, 0)
	col := telemetry.NewCollector(st, telemetry.NewAggregator(st), []telemetry.Link{link},
		telemetry.CollectorConfig{PollInterval: time.Millisecond}, zap.NewNop())
	defer col.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if (g+i)%2 == 0 {
					col.Start()
				} else {
					col.Stop()
				}
			}
		}(g)
	}
	wg.Wait()

	col.Start()
	col.Stop()
	col.Start()
	time.Sleep(10 * time.Millisecond)
	assert.LessOrEqual(t, link.max.Load(), int32(1))
}
