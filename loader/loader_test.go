package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/subsquid/archive-gateway/metrics"
)

// recorder is a BatchFunc that records every batch it is called with.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	release chan struct{}
}

func (r *recorder) fetch(ctx context.Context, keys []string) (map[string]int, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), keys...))
	r.mu.Unlock()

	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		if k != "missing" {
			out[k] = len(k)
		}
	}
	return out, nil
}

func (r *recorder) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.batches))
	for i, b := range r.batches {
		out[i] = append([]string(nil), b...)
		sort.Strings(out[i])
	}
	return out
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch, WithWait(100*time.Millisecond))

	var g errgroup.Group
	results := make([]map[string]int, 3)
	for i, keys := range [][]string{{"a", "bb"}, {"bb", "ccc"}, {"a", "dddd"}} {
		g.Go(func() error {
			res, err := l.LoadMany(context.Background(), keys)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, [][]string{{"a", "bb", "ccc", "dddd"}}, rec.calls())
	require.Equal(t, map[string]int{"a": 1, "bb": 2}, results[0])
	require.Equal(t, map[string]int{"bb": 2, "ccc": 3}, results[1])
	require.Equal(t, map[string]int{"a": 1, "dddd": 4}, results[2])
}

func TestResolvedKeysAreNotRefetched(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)
	ctx := context.Background()

	_, err := l.LoadMany(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	res, err := l.LoadMany(ctx, []string{"bb", "ccc"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"bb": 2, "ccc": 3}, res)

	v, err := l.Load(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	require.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, rec.calls())
}

func TestMissingKeysResolveToZero(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	res, err := l.LoadMany(context.Background(), []string{"a", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "missing": 0}, res)
}

func TestFetchErrorFailsEveryKey(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{err: boom}
	l := New(context.Background(), rec.fetch, WithWait(time.Hour))

	thunks := []Thunk[int]{l.LoadThunk("a"), l.LoadThunk("bb"), l.LoadThunk("ccc")}
	l.Flush()
	for _, thunk := range thunks {
		_, err := thunk(context.Background())
		require.ErrorIs(t, err, boom)
	}
	// No retry on the failed keys.
	_, err := l.Load(context.Background(), "a")
	require.ErrorIs(t, err, boom)
	require.Len(t, rec.calls(), 1)
}

func TestCancelledCallerOnly(t *testing.T) {
	rec := &recorder{release: make(chan struct{})}
	l := New(context.Background(), rec.fetch)

	cancelled, cancel := context.WithCancel(context.Background())
	first := l.LoadThunk("a")
	second := l.LoadThunk("a")
	l.Flush()

	cancel()
	_, err := first(cancelled)
	require.ErrorIs(t, err, context.Canceled)

	close(rec.release)
	v, err := second(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Len(t, rec.calls(), 1)
}

func TestMaxBatch(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch, WithWait(time.Hour), WithMaxBatch(2))

	thunks := []Thunk[int]{l.LoadThunk("a"), l.LoadThunk("bb"), l.LoadThunk("ccc")}
	l.Flush()
	for _, thunk := range thunks {
		_, err := thunk(context.Background())
		require.NoError(t, err)
	}
	require.ElementsMatch(t, [][]string{{"a", "bb"}, {"ccc"}}, rec.calls())
}

func TestWaitWindowDispatches(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch, WithWait(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := l.Load(ctx, "bb")
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestMetrics(t *testing.T) {
	rec := &recorder{}
	m := metrics.NewDefaultLoaderMetrics("loader_test")
	l := New(context.Background(), rec.fetch, WithName("test"), WithMetrics(m))

	_, err := l.LoadMany(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Batches("test", "success")))
}

func TestGroupBy(t *testing.T) {
	type rec struct {
		block string
		pos   int
	}
	records := []rec{{"b1", 0}, {"b2", 0}, {"b1", 1}, {"b3", 0}, {"b1", 2}}
	got := GroupBy([]string{"b1", "b2", "b4"}, records, func(r rec) string { return r.block })

	require.Equal(t, map[string][]rec{
		"b1": {{"b1", 0}, {"b1", 1}, {"b1", 2}},
		"b2": {{"b2", 0}},
		"b4": {},
	}, got)
	require.NotNil(t, got["b4"])
}
