package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/filestore"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(context.Context, llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		return `{"action": "list_tables", "action_input": ""}`, nil
	}
	return s.replies[i], nil
}

type blockingLLM struct{ called chan struct{} }

func (b *blockingLLM) Complete(ctx context.Context, _ llm.Request) (string, error) {
	select {
	case b.called <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) PutObject(_ context.Context, key string, r io.Reader, _ int64, ct string) (*filestore.ObjectInfo, error) {
	data, _ := io.ReadAll(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: ct}, nil
}

func (m *memStore) GetObject(_ context.Context, key string) (filestore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no object %q", key)
	}
	return memObject{Reader: bytes.NewReader(data)}, nil
}

func (m *memStore) ListObjects(_ context.Context, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []filestore.ObjectInfo
	for k := range m.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			out = append(out, filestore.ObjectInfo{Key: k})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type memObject struct{ *bytes.Reader }

func (memObject) Close() error                { return nil }
func (memObject) Info() *filestore.ObjectInfo { return nil }

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	model  llm.Client
	models []string
	dbPath string
}

func newHarness(t *testing.T, model llm.Client, archive *session.StoreArchiver) *harness {
	t.Helper()
	h := &harness{t: t, model: model, dbPath: usersPath(t)}

	cfg := config.Default()
	cfg.LLM.APIKey = "test"
	cfg.Agent.MaxSteps = 4
	mgr := session.NewManager(time.Minute, nil)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	s := New(Options{
		Config:   cfg,
		Sessions: mgr,
		LLM: func(name string) (llm.Client, error) {
			h.models = append(h.models, name)
			return h.model, nil
		},
		Archive: archive,
	})
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func usersPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT); INSERT INTO users VALUES (1, 'Ada');`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	return path
}

func (h *harness) do(method, path string, body any) (int, map[string]any) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(data) > 0 {
		require.NoError(h.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (h *harness) start() string {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/v1/sessions", map[string]string{"dialect": "sqlite", "dsn": h.dbPath})
	require.Equal(h.t, http.StatusCreated, code, body)
	assert.Equal(h.t, "sqlite", body["dialect"])
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)
	code, body := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionFlow(t *testing.T) {
	model := &scriptedLLM{replies: []string{
		`{"thought": "count", "action": "query_db", "action_input": "SELECT COUNT(*) FROM users"}`,
		`{"thought": "done", "action": "final_answer", "action_input": "There is 1 user."}`,
	}}
	h := newHarness(t, model, nil)
	id := h.start()

	code, body := h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": "How many users are there?"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "done", body["status"])
	assert.Equal(t, "There is 1 user.", body["answer"])
	assert.Len(t, body["steps"], 2)

	code, body = h.do(http.MethodGet, "/v1/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 3)

	code, body = h.do(http.MethodGet, "/v1/sessions/"+id+"/schema", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["text"], "users(id integer, name text)")
	assert.EqualValues(t, 1, body["total_tables"])

	code, _ = h.do(http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	assert.Equal(t, http.StatusNoContent, code)
	_, body = h.do(http.MethodGet, "/v1/sessions/"+id+"/messages", nil)
	assert.Len(t, body["messages"], 1)

	code, _ = h.do(http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, body = h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": "hello"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["kind"])
}

func TestStartSession_Errors(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)

	code, body := h.do(http.MethodPost, "/v1/sessions", map[string]string{"dialect": "postgres", "dsn": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["kind"])

	code, _ = h.do(http.MethodPost, "/v1/sessions", map[string]string{"dialect": "sqlite", "dsn": filepath.Join(t.TempDir(), "missing.db")})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(http.MethodPost, "/v1/sessions", map[string]string{"dialect": "postgres", "dsn": "postgres://u:p@127.0.0.1:1/db"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "connection_failed", body["kind"])
}

func TestStartSession_ModelOverride(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)
	code, _ := h.do(http.MethodPost, "/v1/sessions", map[string]string{"dsn": h.dbPath, "model": "gpt-4o-mini"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []string{"gpt-4o-mini"}, h.models)
}

func TestAsk_Errors(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)
	id := h.start()

	code, _ := h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": " "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, "/v1/sessions/nope/ask", map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body := h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": "unanswerable"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "budget_exceeded", body["reason"])
}

func TestAsk_Busy(t *testing.T) {
	model := &blockingLLM{called: make(chan struct{}, 1)}
	h := newHarness(t, model, nil)
	id := h.start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, h.srv.URL+"/v1/sessions/"+id+"/ask", strings.NewReader(`{"question": "slow"}`))
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-model.called:
	case <-time.After(5 * time.Second):
		t.Fatal("model was never called")
	}

	code, body := h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": "second"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "busy", body["kind"])

	// Reset interrupts the slow question.
	code, _ = h.do(http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestArchives(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	model := &scriptedLLM{replies: []string{`{"action": "final_answer", "action_input": "hi"}`}}
	h := newHarness(t, model, session.NewStoreArchiver(store))
	id := h.start()

	h.do(http.MethodPost, "/v1/sessions/"+id+"/ask", map[string]string{"question": "hello"})
	code, _ := h.do(http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusNoContent, code)

	code, body := h.do(http.MethodGet, "/v1/archives/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	list := body["archives"].([]any)
	require.Len(t, list, 1)

	key := list[0].(map[string]any)["key"].(string)
	name := strings.TrimPrefix(key, id+"/")
	code, body = h.do(http.MethodGet, "/v1/archives/"+id+"/"+name, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["session_id"])
	assert.Len(t, body["turns"], 3)

	code, _ = h.do(http.MethodGet, "/v1/archives/"+id+"/missing.json", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestArchives_Disabled(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)
	code, _ := h.do(http.MethodGet, "/v1/archives/abc", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, &scriptedLLM{}, nil)
	h.do(http.MethodGet, "/healthz", nil)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "askdb_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindInvalidInput, http.StatusBadRequest},
		{errs.ErrKindNotFound, http.StatusNotFound},
		{errs.ErrKindBusy, http.StatusConflict},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindConnectionFailed, http.StatusBadGateway},
		{errs.ErrKindModelFailed, http.StatusBadGateway},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindQueryFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(errs.New(tt.kind, "x")))
		})
	}
}
