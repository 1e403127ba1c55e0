package supabase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST serves the two requests the client issues against /rest/v1/records.
type fakePostgREST struct {
	mu   sync.Mutex
	rows map[string]row
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/records") {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		ns := strings.TrimPrefix(q.Get("namespace"), "eq.")
		key := strings.TrimPrefix(q.Get("key"), "eq.")
		out := []map[string]string{}
		if existing, ok := f.rows[ns+"/"+key]; ok {
			out = append(out, map[string]string{"value": existing.Value})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var incoming row
		if err := json.Unmarshal(body, &incoming); err != nil {
			http.Error(w, `{"message":"bad body"}`, http.StatusBadRequest)
			return
		}
		f.rows[incoming.Namespace+"/"+incoming.Key] = incoming
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestClient_ReadWrite(t *testing.T) {
	fake := &fakePostgREST{rows: map[string]row{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, APIKey: "anon", Namespace: "players"})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Read(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Write(ctx, "p1", []byte(`{"score":10}`)))

	stored := fake.rows["players/p1"]
	raw, err := base64.StdEncoding.DecodeString(stored.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":10}`, string(raw))

	got, ok, err := c.Read(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"score":10}`, string(got))
}
