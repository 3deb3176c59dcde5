package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"

	"scriptstudio/internal/config"
	"scriptstudio/internal/db"
	"scriptstudio/internal/engine"
	"scriptstudio/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, csrf CSRFConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, BasePath: "/v1", CSRF: csrf})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	jar, _ := cookiejar.New(nil)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{Jar: jar},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
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

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, CSRFConfig{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "Website Redesign",
		"description": "Redesign the landing page",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create order status %d: %s", res.StatusCode, string(data))
	}
	var created OrderResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if created.Status != "OPEN" || created.Partition != "open" {
		t.Errorf("created order: status=%s partition=%s", created.Status, created.Partition)
	}
	if !strings.HasPrefix(created.ID, "PW-20250825-") {
		t.Errorf("order id = %s", created.ID)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/orders/"+created.ID+"/status", map[string]any{
		"status": "ACTIVE",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}

	// Declining an active order must fail with the transition envelope.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/orders/"+created.ID+"/status", map[string]any{
		"status": "DECLINED",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("decline from ACTIVE status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Errorf("error code = %s, want invalid_transition", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/orders?partition=active", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list active status %d: %s", res.StatusCode, string(data))
	}
	var active []OrderResponse
	if err := json.Unmarshal(data, &active); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(active) != 1 || active[0].ID != created.ID {
		t.Errorf("active partition = %+v", active)
	}
}

func TestCreateOrderValidationOverHTTP(t *testing.T) {
	srv := newTestServer(t, CSRFConfig{})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "  ",
		"description": "x",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank title status %d: %s", res.StatusCode, string(data))
	}
}

func TestArtifactsAndExport(t *testing.T) {
	srv := newTestServer(t, CSRFConfig{})
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "Fitness Brand",
		"description": "Short form scripts",
	}, nil)
	var order OrderResponse
	if err := json.Unmarshal(data, &order); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders/"+order.ID+"/artifacts", map[string]any{
		"title":   "Morning routine hooks",
		"body":    "Hook 1...",
		"quality": "silver",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create artifact status %d: %s", res.StatusCode, string(data))
	}
	var artifact ArtifactResponse
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatal(err)
	}
	if artifact.Kind != "sample" {
		t.Errorf("kind = %s, want sample for open order", artifact.Kind)
	}
	if artifact.APICost != 0.63 {
		t.Errorf("silver cost = %v", artifact.APICost)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/orders/"+order.ID+"/artifacts", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list artifacts status %d: %s", res.StatusCode, string(data))
	}
	var groups []WeekGroupResponse
	if err := json.Unmarshal(data, &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Week != "2025-W35" {
		t.Errorf("week groups = %+v", groups)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/artifacts/"+artifact.ID+"/document", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", res.StatusCode, string(data))
	}
	disposition := res.Header.Get("Content-Disposition")
	wantName := order.ID + "_sample.pdf"
	if !strings.Contains(disposition, wantName) {
		t.Errorf("disposition = %q, want filename %s", disposition, wantName)
	}
	if !bytes.Contains(data, []byte("Morning routine hooks")) {
		t.Error("rendered document missing artifact title")
	}
}

func TestCSRFEnforcement(t *testing.T) {
	srv := newTestServer(t, CSRFConfig{Secret: "test-secret"})
	client := srv.Client()

	// Mutations without the cookie are rejected.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "Blocked",
		"description": "no token",
	}, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("no-token status %d: %s", res.StatusCode, string(data))
	}

	// Fetch the cookie, echo it in the header, and the mutation passes.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/csrf", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("csrf endpoint status %d", res.StatusCode)
	}
	var token string
	for _, c := range res.Cookies() {
		if c.Name == csrfCookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("csrf cookie not set")
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "Allowed",
		"description": "with token",
	}, map[string]string{"X-Csrf-Token": token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("with-token status %d: %s", res.StatusCode, string(data))
	}

	// A header that does not match the cookie is rejected.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/orders", map[string]any{
		"title":       "Forged",
		"description": "bad token",
	}, map[string]string{"X-Csrf-Token": "forged"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("forged-token status %d: %s", res.StatusCode, string(data))
	}
}
