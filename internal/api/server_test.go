package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spheres/internal/config"
	"spheres/internal/game"
	"spheres/internal/save"
	"spheres/internal/stage"
	"spheres/internal/vault"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{MaxBlobBytes: 64}
	svc := vault.NewService(vault.NewMemoryRepository(), cfg.MaxBlobBytes, logger)
	srv := httptest.NewServer(New(cfg, logger, stage.Default(), svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body []byte, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthAndStages(t *testing.T) {
	srv := newTestServer(t)
	if code, _ := do(t, http.MethodGet, srv.URL+"/healthz", nil, nil); code != http.StatusOK {
		t.Fatalf("healthz got %d", code)
	}
	code, out := do(t, http.MethodGet, srv.URL+"/v1/stages", nil, nil)
	if code != http.StatusOK {
		t.Fatalf("stages got %d", code)
	}
	stages, _ := out["stages"].([]any)
	if len(stages) != stage.Default().Count() {
		t.Fatalf("stages len got %d want %d", len(stages), stage.Default().Count())
	}
	last := stages[len(stages)-1].(map[string]any)
	if last["final"] != true {
		t.Fatalf("last stage must be final: %v", last)
	}
}

func TestSlotLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, creds := do(t, http.MethodPost, srv.URL+"/v1/slots", nil, nil)
	if code != http.StatusCreated {
		t.Fatalf("create got %d", code)
	}
	id, _ := creds["slot_id"].(string)
	token, _ := creds["token"].(string)
	auth := map[string]string{tokenHeader: token, "Content-Type": "application/json"}

	code, out := do(t, http.MethodPut, srv.URL+"/v1/slots/"+id, []byte(`{"blob":"c2VjcmV0","base_revision":0}`), auth)
	if code != http.StatusOK || out["revision"] != float64(1) {
		t.Fatalf("put got %d %v", code, out)
	}

	code, out = do(t, http.MethodGet, srv.URL+"/v1/slots/"+id, nil, map[string]string{"Authorization": "Bearer " + token})
	if code != http.StatusOK || out["blob"] != "c2VjcmV0" {
		t.Fatalf("get got %d %v", code, out)
	}

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		headers map[string]string
		want    int
	}{
		{"stale revision", http.MethodPut, "/v1/slots/" + id, `{"blob":"x","base_revision":0}`, auth, http.StatusConflict},
		{"bad token", http.MethodGet, "/v1/slots/" + id, "", map[string]string{tokenHeader: "wrong"}, http.StatusForbidden},
		{"unknown slot", http.MethodGet, "/v1/slots/00000000-0000-0000-0000-000000000009", "", auth, http.StatusNotFound},
		{"too large", http.MethodPut, "/v1/slots/" + id, `{"blob":"` + strings.Repeat("a", 65) + `"}`, auth, http.StatusRequestEntityTooLarge},
		{"empty", http.MethodPut, "/v1/slots/" + id, `{"blob":""}`, auth, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/v1/slots/" + id, `{"blob":"x","extra":1}`, auth, http.StatusBadRequest},
	}
	for _, tc := range tests {
		code, out := do(t, tc.method, srv.URL+tc.path, []byte(tc.body), tc.headers)
		if code != tc.want {
			t.Fatalf("%s: got %d want %d (%v)", tc.name, code, tc.want, out)
		}
	}
}

func TestInspect(t *testing.T) {
	srv := newTestServer(t)

	core := game.New(stage.Default(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	core.Advance(1)
	raw, err := save.Encode(core.Serialize())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	code, out := do(t, http.MethodPost, srv.URL+"/v1/inspect", raw, nil)
	if code != http.StatusOK {
		t.Fatalf("inspect got %d %v", code, out)
	}
	if out["base_rate"] != float64(10) || out["threshold"] != float64(50) || out["stage"] != float64(0) {
		t.Fatalf("unexpected inspect body %v", out)
	}

	if code, _ := do(t, http.MethodPost, srv.URL+"/v1/inspect", []byte("nope"), nil); code != http.StatusBadRequest {
		t.Fatalf("garbage got %d want 400", code)
	}
	if code, _ := do(t, http.MethodPost, srv.URL+"/v1/inspect", []byte(`{"version":1,"totalUnits":-5}`), nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("negative units got %d want 422", code)
	}
}
