package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "DATE,PROGRAM\n2024-03-05,Chess\n"

func TestFetchCachesAndRevalidates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0)
	src := Source{ID: "test", URL: srv.URL + "/pub?output=csv"}

	first, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, first.Text)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, second.Text)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0)
	src := Source{URL: srv.URL}

	_, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, sampleCSV, res.Text)
}

func TestFetchErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0)
	_, err := f.Fetch(context.Background(), Source{URL: srv.URL})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestFetchEmptyURL(t *testing.T) {
	_, err := NewFetcher(t.TempDir(), 0).Fetch(context.Background(), Source{})
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://docs.google.com/...(redacted)",
		redactURL("https://docs.google.com/spreadsheets/d/e/secret/pub?output=csv"))
	assert.Equal(t, "feed://...(redacted)", redactURL("not a url"))
}
