package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/feed"
)

type fetchFunc func(ctx context.Context, src feed.Source) (feed.FetchResult, error)

func (f fetchFunc) Fetch(ctx context.Context, src feed.Source) (feed.FetchResult, error) {
	return f(ctx, src)
}

func staticFetcher(text string) fetchFunc {
	return func(context.Context, feed.Source) (feed.FetchResult, error) {
		return feed.FetchResult{Text: text}, nil
	}
}

func programs(e *Engine, key string) []string {
	var out []string
	for _, ev := range e.QueryDay(key) {
		out = append(out, ev.Program)
	}
	return out
}

func TestEngineStartsEmpty(t *testing.T) {
	e := New(staticFetcher(""), feed.Source{})
	require.NotNil(t, e.Index())
	assert.Empty(t, e.QueryDay("2024-03-05"))
	assert.Empty(t, e.QueryMonth(2024, time.March))
}

func TestReloadBuildsIndex(t *testing.T) {
	e := New(staticFetcher("DATE,PROGRAM\n2024-03-05,Chess\n2024-03-20,Yoga\n"), feed.Source{})

	require.NoError(t, e.Reload(context.Background()))
	assert.Equal(t, []string{"Chess"}, programs(e, "2024-03-05"))
	assert.Len(t, e.QueryMonth(2024, time.March), 2)

	st := e.Status()
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestReloadFailureKeepsPreviousIndex(t *testing.T) {
	var fail atomic.Bool
	e := New(fetchFunc(func(context.Context, feed.Source) (feed.FetchResult, error) {
		if fail.Load() {
			return feed.FetchResult{}, &feed.FetchError{URL: "https://example.test/x", Err: errors.New("offline")}
		}
		return feed.FetchResult{Text: "DATE,PROGRAM\n2024-03-05,Chess\n"}, nil
	}), feed.Source{})

	require.NoError(t, e.Reload(context.Background()))
	before := e.Index()

	fail.Store(true)
	err := e.Reload(context.Background())
	var fe *feed.FetchError
	require.True(t, errors.As(err, &fe))

	assert.Same(t, before, e.Index())
	assert.Equal(t, []string{"Chess"}, programs(e, "2024-03-05"))
	assert.Contains(t, e.Status().LastError, "offline")
}

func TestFailedReloadReleasesContext(t *testing.T) {
	var seen context.Context
	e := New(fetchFunc(func(ctx context.Context, _ feed.Source) (feed.FetchResult, error) {
		seen = ctx
		return feed.FetchResult{}, &feed.FetchError{Err: errors.New("offline")}
	}), feed.Source{})

	require.Error(t, e.Reload(context.Background()))
	require.NotNil(t, seen)
	assert.ErrorIs(t, seen.Err(), context.Canceled)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Nil(t, e.cancel)
}

func TestNewerReloadSupersedesPending(t *testing.T) {
	entered := make(chan struct{})
	var calls atomic.Int32

	e := New(fetchFunc(func(ctx context.Context, _ feed.Source) (feed.FetchResult, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-ctx.Done()
			// Deliberately return data anyway; the generation check must drop it.
			return feed.FetchResult{Text: "DATE,PROGRAM\n2024-03-05,Old\n"}, nil
		}
		return feed.FetchResult{Text: "DATE,PROGRAM\n2024-03-05,New\n"}, nil
	}), feed.Source{})

	errc := make(chan error, 1)
	go func() { errc <- e.Reload(context.Background()) }()
	<-entered

	require.NoError(t, e.Reload(context.Background()))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first reload was not canceled")
	}
	assert.Equal(t, []string{"New"}, programs(e, "2024-03-05"))
}

func TestRebuildSupersedesPendingReload(t *testing.T) {
	entered := make(chan struct{})
	e := New(fetchFunc(func(ctx context.Context, _ feed.Source) (feed.FetchResult, error) {
		close(entered)
		<-ctx.Done()
		return feed.FetchResult{}, ctx.Err()
	}), feed.Source{})

	errc := make(chan error, 1)
	go func() { errc <- e.Reload(context.Background()) }()
	<-entered

	require.NoError(t, e.Rebuild(feed.ParseTable("DATE,PROGRAM\n2024-03-05,Direct\n")))
	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Equal(t, []string{"Direct"}, programs(e, "2024-03-05"))
}

func TestReadersNeverSeeMixedIndex(t *testing.T) {
	tableA := feed.ParseTable("DATE,PROGRAM\n2024-03-05,A1|A2|A3\n")
	tableB := feed.ParseTable("DATE,PROGRAM\n2024-03-05,B1\n2024-03-05,B2\n")

	e := New(staticFetcher(""), feed.Source{})
	require.NoError(t, e.Rebuild(tableA))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var bad atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				got := programs(e, "2024-03-05")
				switch {
				case len(got) == 3 && strings.Join(got, "") == "A1A2A3":
				case len(got) == 2 && strings.Join(got, "") == "B1B2":
				default:
					bad.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		tbl := tableA
		if i%2 == 0 {
			tbl = tableB
		}
		require.NoError(t, e.Rebuild(tbl))
	}
	cancel()
	wg.Wait()

	assert.Zero(t, bad.Load())
}

func TestStartSchedulerRejectsBadSpec(t *testing.T) {
	e := New(staticFetcher(""), feed.Source{})
	_, err := StartScheduler(context.Background(), e, "not a cron spec", time.UTC)
	assert.Error(t, err)
}

func TestStartSchedulerReloads(t *testing.T) {
	e := New(staticFetcher("DATE,PROGRAM\n2024-03-05,Scheduled\n"), feed.Source{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := StartScheduler(ctx, e, "@every 1s", time.UTC)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(e.QueryDay("2024-03-05")) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
