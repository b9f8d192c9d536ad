package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_EmbedBatch(t *testing.T) {
	var got embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(embedResponse{
			Model:      got.Model,
			Embeddings: [][]float32{{1, 0}, {0, 1}},
		})
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "nomic-embed-text")
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, []string{"a", "b"}, got.Input)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOllama_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m").Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "1 embeddings for 2 inputs")
}

func TestOllama_EmptyInputSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	vecs, err := NewOllama(srv.URL, "m").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, calls.Load())
}

func TestOllama_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "m")
	for i := 0; i < 5; i++ {
		_, err := c.Embed(context.Background(), []string{"x"})
		require.ErrorContains(t, err, "status 500")
	}

	_, err := c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), calls.Load())
}

func TestOllama_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	assert.True(t, NewOllama(srv.URL, "m").Healthy(context.Background()))
	assert.False(t, NewOllama("http://127.0.0.1:1", "m").Healthy(context.Background()))
}
