package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"demandas/internal/config"
	"demandas/internal/db"
	"demandas/internal/engine"
	"demandas/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()

	mu  sync.Mutex
	now time.Time
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func (s *testServer) setNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

func (s *testServer) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

var brt = mustLocation("America/Sao_Paulo")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	testSrv := &testServer{client: &http.Client{}, now: time.Date(2025, 1, 10, 9, 0, 0, 0, brt)}
	e := engine.New(conn, cfg, nil)
	e.Now = testSrv.clock
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv.URL = "http://" + ln.Addr().String()
	testSrv.close = func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
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

var actor = map[string]string{"X-Actor-Id": "ana"}

func actorHeaderAuth() AuthConfig {
	return AuthConfig{AllowActorHeader: true}
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error
}

func createDemanda(t *testing.T, srv *testServer, body map[string]any) DemandaResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/demandas", body, actor)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create demanda status %d: %s", res.StatusCode, string(data))
	}
	var d DemandaResponse
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal demanda: %v", err)
	}
	return d
}

func TestConcludedDemandaCountsTowardPlannedWeek(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	d := createDemanda(t, srv, map[string]any{"nome": "Relatório mensal", "data_prevista": "2025-01-13"})
	if d.State != "pending" || d.PlannedWeek == nil || *d.PlannedWeek != "2025-W03" {
		t.Fatalf("unexpected created demanda: %+v", d)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/weeks/2025-W03", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("week report status %d: %s", res.StatusCode, string(data))
	}
	var bucket WeekBucketResponse
	if err := json.Unmarshal(data, &bucket); err != nil {
		t.Fatalf("unmarshal bucket: %v", err)
	}
	if bucket.PlannedCount != 1 || bucket.AdherencePercent != 0 || bucket.PendingCount != 1 {
		t.Fatalf("pending week: %+v", bucket)
	}

	srv.setNow(time.Date(2025, 1, 15, 10, 0, 0, 0, brt))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/conclude", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("conclude status %d: %s", res.StatusCode, string(data))
	}
	var concluded DemandaResponse
	if err := json.Unmarshal(data, &concluded); err != nil {
		t.Fatalf("unmarshal concluded: %v", err)
	}
	if concluded.State != "completed" || concluded.OnTime == nil || !*concluded.OnTime {
		t.Fatalf("unexpected concluded demanda: %+v", concluded)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/weeks/2025-W03", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("week report status %d: %s", res.StatusCode, string(data))
	}
	bucket = WeekBucketResponse{}
	if err := json.Unmarshal(data, &bucket); err != nil {
		t.Fatalf("unmarshal bucket: %v", err)
	}
	if bucket.AdherencePercent != 100 || bucket.CompletedCount != 1 || bucket.PendingCount != 0 {
		t.Fatalf("completed week: %+v", bucket)
	}
	if len(bucket.CompletedMembers) != 1 || bucket.CompletedMembers[0].ID != d.ID {
		t.Fatalf("expected demanda among completed members, got %+v", bucket.CompletedMembers)
	}
}

func TestLifecycleConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	d := createDemanda(t, srv, map[string]any{"nome": "Revisar contrato"})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/reopen", nil, actor)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("reopen pending: expected 409, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %+v", body)
	}

	srv.setNow(time.Date(2025, 1, 11, 9, 0, 0, 0, brt))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/conclude", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("conclude status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/conclude", nil, actor)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("conclude twice: expected 409, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/reopen", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reopen status %d: %s", res.StatusCode, string(data))
	}
	var reopened DemandaResponse
	if err := json.Unmarshal(data, &reopened); err != nil {
		t.Fatalf("unmarshal reopened: %v", err)
	}
	if reopened.State != "pending" || reopened.DataConclusao != nil {
		t.Fatalf("reopen should clear conclusion: %+v", reopened)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas/"+itoa(d.ID)+"/history", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var history []EventResponse
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	var types []string
	for _, ev := range history {
		types = append(types, ev.Type)
	}
	if strings.Join(types, ",") != "demanda.created,demanda.concluded,demanda.reopened" {
		t.Fatalf("unexpected history %v", types)
	}
	if history[2].Payload["previous_data_conclusao"] == nil {
		t.Fatalf("reopen event should keep the discarded conclusion: %+v", history[2])
	}
}

func TestValidationAndNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"blank nome", http.MethodPost, "/v0/demandas", map[string]any{"nome": "   "}, http.StatusBadRequest, "validation_failed"},
		{"bad planned date", http.MethodPost, "/v0/demandas", map[string]any{"nome": "x", "data_prevista": "13/01/2025"}, http.StatusBadRequest, "validation_failed"},
		{"unknown responsavel", http.MethodPost, "/v0/demandas", map[string]any{"nome": "x", "responsavel_id": 99}, http.StatusBadRequest, "validation_failed"},
		{"malformed week", http.MethodGet, "/v0/reports/weeks/2025-06", nil, http.StatusBadRequest, "malformed_week"},
		{"week 53 of a short year", http.MethodGet, "/v0/weeks/2025-W53", nil, http.StatusBadRequest, "malformed_week"},
		{"bad status filter", http.MethodGet, "/v0/demandas?status=later", nil, http.StatusBadRequest, "validation_failed"},
		{"missing demanda", http.MethodGet, "/v0/demandas/404", nil, http.StatusNotFound, "not_found"},
		{"conclude missing", http.MethodPost, "/v0/demandas/404/conclude", nil, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, client, tc.method, srv.URL+tc.path, tc.body, actor)
			if res.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, res.StatusCode, string(data))
			}
			if body := decodeError(t, data); body.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, body)
			}
		})
	}
}

func TestEditListAndDelete(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/responsaveis", map[string]any{"nome": "João", "email": "joao@example.com"}, actor)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create responsavel status %d: %s", res.StatusCode, string(data))
	}
	var joao ResponsavelResponse
	if err := json.Unmarshal(data, &joao); err != nil {
		t.Fatalf("unmarshal responsavel: %v", err)
	}

	a := createDemanda(t, srv, map[string]any{"nome": "Atualizar planilha", "responsavel_id": joao.ID, "data_prevista": "2025-02-05"})
	if a.ResponsavelNome != "João" {
		t.Fatalf("expected responsavel name to be resolved, got %+v", a)
	}
	b := createDemanda(t, srv, map[string]any{"nome": "Ligar para fornecedor"})

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/demandas/"+itoa(b.ID), map[string]any{"responsavel_id": joao.ID, "data_prevista": "2025-02-07"}, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var edited DemandaResponse
	if err := json.Unmarshal(data, &edited); err != nil {
		t.Fatalf("unmarshal edited: %v", err)
	}
	if edited.DataPrevista == nil || *edited.DataPrevista != "2025-02-07" || edited.State != "pending" {
		t.Fatalf("unexpected edit result: %+v", edited)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas?responsavel_id="+itoa(joao.ID)+"&q=planilha", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var list paginatedDemandas
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != a.ID {
		t.Fatalf("unexpected filtered list: %+v", list)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/demandas/"+itoa(a.ID), nil, actor)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas/"+itoa(a.ID), nil, actor)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected deleted demanda to be gone, got %d", res.StatusCode)
	}
}

func TestPeriodReportAndExports(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	createDemanda(t, srv, map[string]any{"nome": "A", "data_prevista": "2025-02-03"})
	createDemanda(t, srv, map[string]any{"nome": "B", "data_prevista": "2025-02-26"})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/period?ref=2025-02-15", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("period status %d: %s", res.StatusCode, string(data))
	}
	var period PeriodResponse
	if err := json.Unmarshal(data, &period); err != nil {
		t.Fatalf("unmarshal period: %v", err)
	}
	var weeks []string
	for _, w := range period.Weeks {
		weeks = append(weeks, w.Week)
	}
	if strings.Join(weeks, ",") != "2025-W09,2025-W08,2025-W07,2025-W06,2025-W05" {
		t.Fatalf("unexpected weeks %v", weeks)
	}
	if period.Label != "2025-02" || period.Totals.Planned != 2 || period.Totals.AdherencePercent != 0 {
		t.Fatalf("unexpected period: %+v", period)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/weeks?ref=2025-02-15", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("weeks status %d: %s", res.StatusCode, string(data))
	}
	var ranges []WeekRangeResponse
	if err := json.Unmarshal(data, &ranges); err != nil {
		t.Fatalf("unmarshal weeks: %v", err)
	}
	if len(ranges) != 5 || ranges[4].Week != "2025-W05" || !strings.HasPrefix(ranges[4].Start, "2025-01-27T00:00:00") {
		t.Fatalf("unexpected ranges %+v", ranges)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/period.xlsx?ref=2025-02-15", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("xlsx status %d: %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected xlsx content type %q", ct)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("xlsx body is not a zip archive")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/period.svg?ref=2025-02-15", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("svg status %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "<svg") || !strings.Contains(string(data), `data-week="2025-W06"`) {
		t.Fatalf("unexpected svg: %s", string(data))
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t, actorHeaderAuth())
	defer cleanup()
	client := srv.Client()

	for _, nome := range []string{"um", "dois", "três"} {
		createDemanda(t, srv, map[string]any{"nome": nome})
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", page)
	}
	if page.Items[0].ActorID != "ana" || page.Items[0].Payload["nome"] != "três" {
		t.Fatalf("expected newest event first, got %+v", page.Items[0])
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2&cursor="+page.NextCursor, nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	page = paginatedEvents{}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("unexpected last page %+v", page)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas", nil, actor)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("actor header must be ignored unless allowed, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas", nil, map[string]string{"X-Api-Key": "dm_nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown api key, got %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "bearerAuth") {
		t.Fatalf("openapi should be public and declare auth, got %d", res.StatusCode)
	}
}

func TestAPIKeyAndDevLogin(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "test-secret", AllowDevLogin: true, AllowActorHeader: true})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/api-keys", map[string]any{"name": "ci"}, actor)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create api key status %d: %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil {
		t.Fatalf("unmarshal api key: %v", err)
	}
	if !strings.HasPrefix(key.Key, "dm_") {
		t.Fatalf("expected raw key in response, got %+v", key)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas", map[string]any{"nome": "via api key"}, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with api key status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": "bia"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/demandas", map[string]any{"nome": "via jwt"}, bearer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with jwt status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=demanda.created", nil, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ActorID != "bia" || page.Items[1].ActorID != "ana" {
		t.Fatalf("events should carry the authenticated actor: %+v", page.Items)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/demandas", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}

func TestDevLoginRequiresSecret(t *testing.T) {
	if _, err := New(Config{Auth: AuthConfig{AllowDevLogin: true}}); err == nil {
		t.Fatalf("expected error when dev login has no secret")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
