package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/config"
	"pairwise/internal/db"
	"pairwise/internal/domain"
	"pairwise/internal/engine"
	"pairwise/internal/metrics"
	"pairwise/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestEngine(t *testing.T, cfg *config.Config) engine.Engine {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	return e
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	e := newTestEngine(t, config.Default("pairwise"))
	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheus(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	e.Metrics = prom
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true},
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, actor string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": actor}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func createGroup(t *testing.T, srv *testServer, auth map[string]string, names ...string) domain.Group {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups", map[string]any{}, auth)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var g domain.Group
	require.NoError(t, json.Unmarshal(data, &g))
	for _, n := range names {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/participants", map[string]any{"name": n}, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}
	return g
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error.Code
}

func TestRoundFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := login(t, srv, "coach")
	g := createGroup(t, srv, auth, "a", "b", "c", "d")
	assert.Equal(t, "coach", g.SupervisorID)

	var rounds []domain.RoundResult
	for i := 0; i < 2; i++ {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/rounds", map[string]any{}, auth)
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		var r domain.RoundResult
		require.NoError(t, json.Unmarshal(data, &r))
		rounds = append(rounds, r)
	}
	assert.Equal(t, [][2]int64{{1, 4}, {2, 3}}, rounds[0].Pairs)
	assert.Equal(t, [][2]int64{{1, 3}, {4, 2}}, rounds[1].Pairs)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/groups/"+g.Token+"/rounds", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var history RoundList
	require.NoError(t, json.Unmarshal(data, &history))
	assert.Len(t, history.Items, 2)

	// participants poll the latest round without credentials
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/groups/"+g.Token+"/rounds/latest", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/groups/"+g.Token+"/state", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var st domain.GroupState
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, 2, st.RoundCounter)
	assert.Equal(t, []int64{1, 4, 2, 3}, st.Rotation)
	assert.Contains(t, string(data), `"roundCounter":2`)
	assert.Contains(t, string(data), `"ledCounts"`)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/groups/"+g.Token+"/events?limit=2", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var evts paginatedEvents
	require.NoError(t, json.Unmarshal(data, &evts))
	require.Len(t, evts.Items, 2)
	assert.Equal(t, "round.completed", evts.Items[0].Type)
	assert.NotEmpty(t, evts.NextCursor)
}

func TestRoundErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := login(t, srv, "coach")
	g := createGroup(t, srv, auth, "solo")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/rounds", map[string]any{}, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "not_enough_participants", errorCode(t, data))

	other := login(t, srv, "someone-else")
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/rounds", map[string]any{}, other)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/NOPE/rounds", map[string]any{}, auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/close", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/participants", map[string]any{"name": "late"}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "group_closed", errorCode(t, data))
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tokens/stats", nil, map[string]string{"Authorization": "Bearer nonsense"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestParticipantLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := login(t, srv, "coach")
	g := createGroup(t, srv, auth, "a", "b", "c")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/participants/3/leave", nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))

	other := login(t, srv, "intruder")
	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/groups/"+g.Token+"/participants/2", nil, other)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/groups/"+g.Token+"/participants/2", nil, auth)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/groups/"+g.Token, nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var fetched domain.Group
	require.NoError(t, json.Unmarshal(data, &fetched))
	require.Len(t, fetched.Participants, 1)
	assert.Equal(t, "a", fetched.Participants[0].Name)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/groups/"+g.Token+"/supervisor", map[string]any{"participates": true}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/groups/"+g.Token+"/rounds", map[string]any{"category": "technical"}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var r domain.RoundResult
	require.NoError(t, json.Unmarshal(data, &r))
	assert.True(t, r.SupervisorPaired)
	assert.Equal(t, [][2]int64{{1, domain.SupervisorID}}, r.Pairs)
	assert.Len(t, r.Content, 1)
}

func TestContentAndTokens(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := login(t, srv, "editor")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/content", map[string]any{"text": "Name a tool you love", "tags": []string{"tools"}}, auth)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/content/next?scope=s1&category=tools", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var next ContentNextResponse
	require.NoError(t, json.Unmarshal(data, &next))
	assert.Equal(t, "Name a tool you love", next.Text)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tokens/stats", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var stats domain.TokenStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 79, stats.Total)
	assert.Equal(t, "ELEPHANT", stats.Next)
}

func TestMetricsAndDocs(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := login(t, srv, "coach")
	createGroup(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "pairwise_tokens_dispensed_total")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v0/groups/{token}/rounds")

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestIsPublic(t *testing.T) {
	assert.True(t, isPublic("/v0", http.MethodGet, "/v0/health"))
	assert.True(t, isPublic("/v0", http.MethodPost, "/v0/groups/TIGER/participants"))
	assert.True(t, isPublic("/v0", http.MethodPost, "/v0/groups/{token}/participants/{id}/leave"))
	assert.True(t, isPublic("/v0", http.MethodGet, "/v0/groups/TIGER/rounds/latest"))
	assert.False(t, isPublic("/v0", http.MethodGet, "/v0/groups/TIGER/participants"))
	assert.False(t, isPublic("/v0", http.MethodPost, "/v0/groups/TIGER/rounds"))
	assert.False(t, isPublic("/v0", http.MethodPost, "/v0/groups"))
}

func TestWebhookDelivery(t *testing.T) {
	var mu sync.Mutex
	var got []webhookEvent
	var headers []http.Header
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		got = append(got, evt)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := config.Default("pairwise")
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"round.completed"}, Secret: "shh"}}
	e := newTestEngine(t, cfg)
	ctx := context.Background()

	d := newWebhookDispatcher(e, nil)
	require.NotNil(t, d)
	d.dispatchAll(ctx)

	g, err := e.CreateGroup(ctx, engine.CreateGroupOptions{SupervisorID: "coach"})
	require.NoError(t, err)
	for _, n := range []string{"a", "b"} {
		_, err := e.JoinGroup(ctx, g.Token, n)
		require.NoError(t, err)
	}
	_, err = e.RunRound(ctx, g.Token, engine.RunRoundOptions{ActorID: "coach"})
	require.NoError(t, err)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "round.completed", got[0].Type)
	assert.Equal(t, g.Token, got[0].GroupToken)
	assert.True(t, strings.Contains(string(got[0].Payload), `"round_number":1`))
	assert.Equal(t, "shh", headers[0].Get("X-Pairwise-Secret"))
	assert.NotEmpty(t, headers[0].Get("X-Pairwise-Delivery"))
}

func TestNoWebhooksConfigured(t *testing.T) {
	e := newTestEngine(t, config.Default("pairwise"))
	assert.Nil(t, newWebhookDispatcher(e, nil))
	assert.NoError(t, RunWebhooks(context.Background(), e, nil))
}
