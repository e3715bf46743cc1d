package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzagar/bnw/internal/domain"
)

func TestFetchStatus(t *testing.T) {
	t.Run("parses game and picks max round", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":{"id":7,"status":"active"},"rounds":[{"id":1},{"id":3},{"id":2}]}`))
		}))
		defer srv.Close()

		o := New(srv.URL, time.Second)
		s := o.FetchStatus(context.Background())

		require.True(t, s.Known())
		assert.Equal(t, "7", s.GameID)
		assert.Equal(t, "3", s.RoundID)
		assert.Equal(t, domain.GameActive, s.Status)
	})

	t.Run("accepts string ids", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":{"id":"g-7","status":"active"},"rounds":[{"id":"9"},{"id":"10"}]}`))
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		require.True(t, s.Known())
		assert.Equal(t, "g-7", s.GameID)
		assert.Equal(t, "10", s.RoundID)
	})

	t.Run("non-active status maps to inactive", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":{"id":7,"status":"settling"},"rounds":[{"id":4}]}`))
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		assert.Equal(t, domain.GameInactive, s.Status)
	})

	t.Run("transport error degrades to unknown", func(t *testing.T) {
		o := New("http://127.0.0.1:1", 100*time.Millisecond)
		s := o.FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
		assert.Empty(t, s.GameID)
		assert.Empty(t, s.RoundID)
	})

	t.Run("malformed JSON degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":`))
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
	})

	t.Run("null game degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":null,"rounds":[{"id":1}]}`))
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
	})

	t.Run("empty rounds degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"game":{"id":7,"status":"active"},"rounds":[]}`))
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
	})

	t.Run("server error degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := New(srv.URL, time.Second).FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
	})

	t.Run("slow server hits timeout and degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		start := time.Now()
		s := New(srv.URL, 50*time.Millisecond).FetchStatus(context.Background())
		assert.Equal(t, domain.GameUnknown, s.Status)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	})
}
