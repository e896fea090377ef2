package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/lostfound"
)

func TestGetItemRevalidates(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/item/abc", r.URL.Path)
		assert.Equal(t, "wroclaw", r.URL.Query().Get("office"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		json.NewEncoder(w).Encode(lostfound.Item{ID: "abc", Name: "Parasol"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	opts := Options{Office: "wroclaw"}

	item, err := c.GetItem(context.Background(), "abc", opts)
	require.NoError(t, err)
	assert.Equal(t, "Parasol", item.Name)

	item, err = c.GetItem(context.Background(), "abc", opts)
	require.NoError(t, err)
	assert.Equal(t, "Parasol", item.Name)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestPublishSendsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "klucz", r.Header.Get("X-Api-Key"))

		var form lostfound.FormData
		require.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		assert.Equal(t, "Parasol", form.Name)

		json.NewEncoder(w).Encode(lostfound.PublishResult{Success: true, ID: "abc"})
	}))
	defer srv.Close()

	res, err := New(srv.URL, "klucz").Publish(context.Background(), lostfound.FormData{Name: "Parasol"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ID)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"temporarily unavailable, retry later","retryable":true}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").MarkReturned(context.Background(), "abc", Options{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable)
}

func TestListItemsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("returned"))
		json.NewEncoder(w).Encode([]lostfound.Item{{ID: "a"}, {ID: "b"}})
	}))
	defer srv.Close()

	returned := false
	items, err := New(srv.URL, "").ListItems(context.Background(), &returned, Options{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
