package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_EmbedReordersByIndex(t *testing.T) {
	var body struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [0.5, 0.5]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", srv.URL+"/", "text-embedding-3-small")
	vecs, err := o.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, body.Input)
	assert.Equal(t, "text-embedding-3-small", body.Model)
	assert.Equal(t, [][]float32{{0.5, 0.5}, {0, 1}}, vecs)
}

func TestOpenAI_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL+"/", "m").Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "1 embeddings for 2 inputs")
}
