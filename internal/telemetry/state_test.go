package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Selection(t *testing.T) {
	st := NewState(0, 0)
	st.SetSelection(map[string]bool{"b": true, "a": true, "c": false})

	assert.True(t, st.IsSelected("a"))
	assert.False(t, st.IsSelected("c"))
	assert.Equal(t, []string{"a", "b"}, st.Selection())
	assert.Equal(t, []string{"b", "a"}, st.Selected([]string{"b", "c", "a"}))

	st.SetSelection(nil)
	assert.Empty(t, st.Selection())
}

func TestState_PayloadReplayOnlyWhileStopped(t *testing.T) {
	st := NewState(0, 0)
	snap := st.Snapshot()
	st.StorePayload(PayloadGraphs, snap.Generation, []byte("[]"))

	b, ok := st.ReplayPayload(PayloadGraphs)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(b))

	st.setRunning(true)
	_, ok = st.ReplayPayload(PayloadGraphs)
	assert.False(t, ok)
}

func TestState_StalePayloadIsNotStored(t *testing.T) {
	st := NewState(0, 0)
	agg := NewAggregator(st)
	snap := st.Snapshot()

	agg.Feed("a", []byte("1\n"))
	st.StorePayload(PayloadListen, snap.Generation, []byte("stale"))

	_, ok := st.ReplayPayload(PayloadListen)
	assert.False(t, ok)
}

func TestState_MutationDropsCache(t *testing.T) {
	st := NewState(0, 0)
	agg := NewAggregator(st)
	st.StorePayload(PayloadListen, st.Snapshot().Generation, []byte("old"))

	agg.Feed("a", []byte("1\n"))
	_, ok := st.ReplayPayload(PayloadListen)
	assert.False(t, ok)
}

func TestState_ConcurrentReaders(t *testing.T) {
	st := NewState(0, 0)
	agg := NewAggregator(st)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			agg.Feed("a", []byte("1\nx\n"))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := st.Snapshot()
				assert.LessOrEqual(t, len(snap.Log), DefaultLogLines)
				assert.LessOrEqual(t, len(snap.Series), DefaultSeriesSamples)
			}
		}()
	}
	wg.Wait()
}
