package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/mnemo/internal/ai/mock"
	"github.com/starford/mnemo/internal/auth"
	"github.com/starford/mnemo/internal/ingest"
	"github.com/starford/mnemo/internal/sse"
	"github.com/starford/mnemo/internal/store"
	"github.com/starford/mnemo/internal/store/sqlite"
	"github.com/starford/mnemo/internal/testutil"
)

var authCfg = auth.Config{JWTSecret: "test-secret-0123456789"}

type testEnv struct {
	store    *sqlite.Store
	provider *mock.Provider
	router   http.Handler
}

// newTestEnv builds a router over a temp store. A nil provider leaves the
// pipeline unconfigured.
func newTestEnv(t *testing.T, provider *mock.Provider, opts ...HandlerOption) *testEnv {
	t.Helper()
	st := testutil.TestStore(t)

	var svc *ingest.Service
	if provider != nil {
		svc = ingest.NewService(st, provider)
	} else {
		svc = ingest.NewService(st, nil)
	}
	q, err := ingest.NewQueue(svc, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = q.Close(5 * time.Second) })

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	h := NewHandler(st, svc, q, broker, opts...)
	return &testEnv{store: st, provider: provider, router: NewRouter(h, auth.NewVerifier(authCfg), CORSConfig{})}
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := auth.NewIssuer(authCfg).Sign(user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestIngestSuccess(t *testing.T) {
	p := mock.NewProvider()
	p.Tags = `["Philosophy","Consciousness"]`
	env := newTestEnv(t, p)
	n := testutil.SeedNote(t, env.store, "u1", "", "The hard problem of consciousness...")

	w := env.do(t, http.MethodPost, "/ingest", "u1", map[string]string{"noteId": n.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Summary != "A short summary." || resp.Linked != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Tags) != 2 || resp.Tags[0] != "Philosophy" {
		t.Errorf("tags = %v", resp.Tags)
	}
}

func TestIngestErrors(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	n := testutil.SeedNote(t, env.store, "u1", "", "text")

	tests := []struct {
		name   string
		user   string
		body   any
		status int
		want   string
	}{
		{"missing auth", "", map[string]string{"noteId": n.ID}, http.StatusUnauthorized, "Missing Authorization header"},
		{"missing noteId", "u1", map[string]string{}, http.StatusBadRequest, "noteId required"},
		{"malformed body", "u1", "{", http.StatusBadRequest, "noteId required"},
		{"unknown note", "u1", map[string]string{"noteId": "nope"}, http.StatusNotFound, "note not found"},
		{"not owner", "u2", map[string]string{"noteId": n.ID}, http.StatusForbidden, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/ingest", tt.user, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %q)", w.Code, tt.status, w.Body.String())
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("content-type = %q", ct)
			}
		})
	}
}

func TestIngestInvalidToken(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"noteId":"x"}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || w.Body.String() != "Invalid or expired token" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestIngestWithoutProvider(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/ingest", "u1", map[string]string{"noteId": "x"})
	if w.Code != http.StatusInternalServerError || w.Body.String() != "Missing OPENAI_API_KEY" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestIngestUpstreamFailure(t *testing.T) {
	p := mock.NewProvider()
	p.SummaryErr = errorString("provider said 429")
	env := newTestEnv(t, p)
	n := testutil.SeedNote(t, env.store, "u1", "", "text")

	w := env.do(t, http.MethodPost, "/ingest", "u1", map[string]string{"noteId": n.ID})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "provider said 429") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestIngestFailureLoggedByAPIComponent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	p := mock.NewProvider()
	p.SummaryErr = errorString("provider said 503")
	env := newTestEnv(t, p, WithLogger(logger))
	n := testutil.SeedNote(t, env.store, "u1", "", "text")

	w := env.do(t, http.MethodPost, "/ingest", "u1", map[string]string{"noteId": n.ID})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if e["msg"] == "ingest failed" {
			entry = e
		}
	}
	if entry == nil {
		t.Fatalf("no ingest failure logged:\n%s", logs.String())
	}
	if entry["component"] != "api" || entry["note_id"] != n.ID {
		t.Errorf("log entry = %v", entry)
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code >= 300 {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestCreateGetNoteAndAsyncIngest(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	w := env.do(t, http.MethodPost, "/notes?ingest=async", "u1", CreateNoteRequest{RawText: "queued body", Title: "Queued"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created CreateNoteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Ingest != IngestQueued {
		t.Errorf("ingest = %q, want queued", created.Ingest)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := env.store.GetNote(context.Background(), created.Note.ID)
		if err == nil && n.Summary != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background ingestion did not complete")
		}
		time.Sleep(20 * time.Millisecond)
	}

	w = env.do(t, http.MethodGet, "/notes/"+created.Note.ID, "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Note.Title != "Queued" || len(detail.Tags) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if w := env.do(t, http.MethodGet, "/notes/"+created.Note.ID, "u2", nil); w.Code != http.StatusForbidden {
		t.Errorf("foreign get = %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/notes/missing", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing get = %d, want 404", w.Code)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodPost, "/notes", "u1", CreateNoteRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty note = %d, want 400", w.Code)
	}
	w := env.do(t, http.MethodPost, "/notes?ingest=async", "u1", CreateNoteRequest{RawText: "x"})
	var created CreateNoteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Ingest != IngestUnavailable {
		t.Errorf("ingest = %q, want unavailable", created.Ingest)
	}
}

func TestListNotesScopedToCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	testutil.SeedNote(t, env.store, "u1", "a", "a")
	testutil.SeedNote(t, env.store, "u1", "b", "b")
	testutil.SeedNote(t, env.store, "u2", "c", "c")

	w := env.do(t, http.MethodGet, "/notes?limit=10", "u1", nil)
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Notes) != 2 {
		t.Errorf("total = %d, notes = %d", resp.Total, len(resp.Notes))
	}
}

func TestSearchModes(t *testing.T) {
	p := mock.NewProvider()
	env := newTestEnv(t, p)
	a := testutil.SeedNote(t, env.store, "u1", "Postgres tuning", "vacuum")
	testutil.SeedEmbedding(t, env.store, a.ID, p.Model, []float32{1, 0, 0})

	w := env.do(t, http.MethodGet, "/search?q=postgres", "u1", nil)
	var kw SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &kw)
	if kw.Mode != "keyword" || len(kw.Results) != 1 || kw.Results[0].ID != a.ID {
		t.Errorf("keyword = %+v", kw)
	}

	w = env.do(t, http.MethodGet, "/search?q=databases&mode=semantic", "u1", nil)
	var sem SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sem)
	if sem.Mode != "semantic" || len(sem.Results) != 1 || sem.Results[0].Score == nil {
		t.Fatalf("semantic = %+v", sem)
	}
	if *sem.Results[0].Score < 0.99 {
		t.Errorf("score = %v", *sem.Results[0].Score)
	}

	if w := env.do(t, http.MethodGet, "/search", "u1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/search?q=x&mode=fuzzy", "u1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad mode = %d", w.Code)
	}
}

func TestGraphAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := testutil.SeedNote(t, env.store, "u1", "a", "a")
	b := testutil.SeedNote(t, env.store, "u1", "b", "b")
	err := env.store.UpsertEdges(ctx, []store.Edge{{
		UserID: "u1", SourceNoteID: a.ID, TargetNoteID: b.ID, Strength: 0.6,
		Reason: store.EdgeReason{By: "ai", Method: "semantic", Timestamp: time.Now().UTC()},
	}})
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/graph", "u1", nil)
	var g GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if len(g.Nodes) != 2 || len(g.Links) != 1 || g.Links[0].Source != a.ID {
		t.Errorf("graph = %+v", g)
	}

	w = env.do(t, http.MethodGet, "/account/stats", "u1", nil)
	var st store.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Notes != 2 || st.Connections != 1 || st.Tags != 0 {
		t.Errorf("stats = %+v", st)
	}
}
