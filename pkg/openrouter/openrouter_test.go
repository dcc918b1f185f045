package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogue = `{"data":[
	{"id":"paid/model","name":"Paid","pricing":{"prompt":"0.000001","completion":"0.000002"},"top_provider":{"context_length":200000}},
	{"id":"small/free","name":"Small","pricing":{"prompt":"0","completion":"0"},"top_provider":{"context_length":8192}},
	{"id":"half/free","name":"Half","pricing":{"prompt":"0","completion":"0.1"},"top_provider":{"context_length":64000}},
	{"id":"big/free","name":"Big","pricing":{"prompt":"0","completion":"0"},"top_provider":{"context_length":131072}},
	{"id":"nolen/free","name":"NoLen","pricing":{"prompt":"0","completion":"0"},"top_provider":{}}
]}`

func TestParseFree(t *testing.T) {
	got, err := ParseFree([]byte(catalogue))
	require.NoError(t, err)

	want := []Model{
		{ID: "big/free", Name: "Big", ContextLength: 131072},
		{ID: "small/free", Name: "Small", ContextLength: 8192},
		{ID: "nolen/free", Name: "NoLen", ContextLength: 0},
	}
	assert.Equal(t, want, got)
}

func TestParseFree_Invalid(t *testing.T) {
	_, err := ParseFree([]byte("{not json"))
	assert.Error(t, err)
}

func TestClient_FreeModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(catalogue))
	}))
	defer srv.Close()

	models, err := NewClient(srv.URL+"/api/v1/", nil).FreeModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "big/free", models[0].ID)

	path := filepath.Join(t.TempDir(), "free.txt")
	require.NoError(t, SaveIDs(path, models))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "big/free\nsmall/free\nnolen/free\n", string(raw))
}

func TestClient_FreeModelsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).FreeModels(context.Background())
	assert.Error(t, err)
}
