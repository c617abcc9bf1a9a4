package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	seal "github.com/whosthedumbass/sealer"
	"github.com/whosthedumbass/sealer/internal/api"
	"github.com/whosthedumbass/sealer/store/memory"
)

const testSecret = "test-signing-secret"

type apiBundle struct {
	svc    *seal.Service
	server *httptest.Server
	now    time.Time
}

func mustCreateAPIBundle(t *testing.T) *apiBundle {
	ledger := memory.New()
	svc, err := seal.NewService(ledger, []byte(testSecret), nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error creating service: %v", err)
	}
	now := time.Now()
	svc.Clock = func() time.Time { return now }
	ledger.Clock = svc.Clock
	mux := http.NewServeMux()
	api.NewRouter(svc).Register(mux)
	server := httptest.NewServer(api.CORS(mux))
	t.Cleanup(server.Close)
	return &apiBundle{svc: svc, server: server, now: now}
}

func mustDo(t *testing.T, method, url string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Unexpected error marshalling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Unexpected error building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Unexpected error performing request: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Unexpected error decoding response body: %v", err)
	}
	return resp.StatusCode, decoded
}

func profileJSON(t *testing.T, nonce, score string) string {
	profile := make(map[string]any, len(seal.DefaultIndicators))
	for _, k := range seal.DefaultIndicators {
		profile[k] = score
	}
	b, err := json.Marshal(map[string]any{
		"nonce":            nonce,
		"context_messages": 12,
		"analysis_summary": "a test summary",
		"profile":          profile,
	})
	if err != nil {
		t.Fatalf("Unexpected error marshalling payload: %v", err)
	}
	return string(b)
}

func TestHealth(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	for _, path := range []string{"/", "/health"} {
		status, body := mustDo(t, http.MethodGet, ab.server.URL+path, nil)
		if status != http.StatusOK {
			t.Errorf("GET %s returned incorrect status - got: %d, want: %d", path, status, http.StatusOK)
		}
		if ok, _ := body["ok"].(bool); !ok {
			t.Errorf("GET %s returned incorrect body: %v", path, body)
		}
		if got, want := body["version"], "2.2"; got != want {
			t.Errorf("GET %s returned incorrect version - got: %v, want: %v", path, got, want)
		}
	}
}

func TestNotFound(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{name: "unknown path", method: http.MethodGet, path: "/leaderboard"},
		{name: "nonce wrong method", method: http.MethodPost, path: "/nonce"},
		{name: "verify wrong method", method: http.MethodGet, path: "/verify"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := mustDo(t, tc.method, ab.server.URL+tc.path, nil)
			if status != http.StatusNotFound {
				t.Errorf("%s %s returned incorrect status - got: %d, want: %d", tc.method, tc.path, status, http.StatusNotFound)
			}
			if diff := cmp.Diff("not_found", body["error"]); diff != "" {
				t.Errorf("%s %s returned incorrect error code (+got, -want):\n%s", tc.method, tc.path, diff)
			}
		})
	}
}

var nonceIDPattern = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestNonceIssue(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	status, body := mustDo(t, http.MethodGet, ab.server.URL+"/nonce", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /nonce returned incorrect status - got: %d, want: %d", status, http.StatusOK)
	}
	nonce, _ := body["nonce"].(string)
	if !nonceIDPattern.MatchString(nonce) {
		t.Errorf("GET /nonce returned malformed nonce: %q", nonce)
	}
	if got, want := body["expires_in"], float64(120); got != want {
		t.Errorf("GET /nonce returned incorrect expires_in - got: %v, want: %v", got, want)
	}
	ts, _ := body["timestamp"].(float64)
	expiresAt, _ := body["expires_at"].(float64)
	if expiresAt-ts != 120_000 {
		t.Errorf("GET /nonce returned inconsistent timestamps - timestamp: %v, expires_at: %v", ts, expiresAt)
	}
}

func TestVerifyAndValidateToken(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	_, nonceBody := mustDo(t, http.MethodGet, ab.server.URL+"/nonce", nil)
	nonce := nonceBody["nonce"].(string)
	req := map[string]any{
		"nonce":        nonce,
		"timestamp":    ab.now.UnixMilli(),
		"profile_json": profileJSON(t, nonce, "50.0000"),
	}
	status, body := mustDo(t, http.MethodPost, ab.server.URL+"/verify", req)
	if status != http.StatusOK {
		t.Fatalf("POST /verify returned incorrect status - got: %d, body: %v", status, body)
	}
	if got, want := body["iq"], float64(115); got != want {
		t.Errorf("POST /verify returned incorrect iq - got: %v, want: %v", got, want)
	}
	if diff := cmp.Diff("smart", body["tier"]); diff != "" {
		t.Errorf("POST /verify returned incorrect tier (+got, -want):\n%s", diff)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("POST /verify returned an empty token")
	}

	// Replaying the same nonce must fail.
	status, body = mustDo(t, http.MethodPost, ab.server.URL+"/verify", req)
	if status != http.StatusBadRequest {
		t.Errorf("POST /verify replay returned incorrect status - got: %d, want: %d", status, http.StatusBadRequest)
	}
	if diff := cmp.Diff("nonce_invalid", body["error"]); diff != "" {
		t.Errorf("POST /verify replay returned incorrect error code (+got, -want):\n%s", diff)
	}

	// The sealed token re-verifies.
	status, body = mustDo(t, http.MethodPost, ab.server.URL+"/validate-token", map[string]any{"token": token})
	if status != http.StatusOK {
		t.Fatalf("POST /validate-token returned incorrect status - got: %d, body: %v", status, body)
	}
	if valid, _ := body["valid"].(bool); !valid {
		t.Errorf("POST /validate-token returned incorrect body: %v", body)
	}
	if got, want := body["iq"], float64(115); got != want {
		t.Errorf("POST /validate-token returned incorrect iq - got: %v, want: %v", got, want)
	}

	// A token with a flipped signature character reports tampering.
	rec, err := seal.DecodeToken(token)
	if err != nil {
		t.Fatalf("Unexpected error decoding token: %v", err)
	}
	if rec.Sig[0] == 'a' {
		rec.Sig = "b" + rec.Sig[1:]
	} else {
		rec.Sig = "a" + rec.Sig[1:]
	}
	tampered, err := seal.EncodeToken(rec)
	if err != nil {
		t.Fatalf("Unexpected error encoding token: %v", err)
	}
	status, body = mustDo(t, http.MethodPost, ab.server.URL+"/validate-token", map[string]any{"token": tampered})
	if status != http.StatusBadRequest {
		t.Errorf("POST /validate-token (tampered) returned incorrect status - got: %d, want: %d", status, http.StatusBadRequest)
	}
	if diff := cmp.Diff("signature_invalid", body["error"]); diff != "" {
		t.Errorf("POST /validate-token (tampered) returned incorrect error code (+got, -want):\n%s", diff)
	}
	if flagged, _ := body["tampered"].(bool); !flagged {
		t.Errorf("POST /validate-token (tampered) did not set the tamper flag: %v", body)
	}
}

func TestVerifyErrors(t *testing.T) {
	testCases := []struct {
		name   string
		body   func(t *testing.T, ab *apiBundle) io.Reader
		status int
		code   string
	}{
		{
			name: "bad json",
			body: func(t *testing.T, ab *apiBundle) io.Reader {
				return bytes.NewReader([]byte(`{`))
			},
			status: http.StatusBadRequest,
			code:   "bad_json",
		},
		{
			name: "unknown nonce",
			body: func(t *testing.T, ab *apiBundle) io.Reader {
				b, _ := json.Marshal(map[string]any{
					"nonce":        "5E0FC344A1B94E8C9D2B7F31C6A8D405",
					"profile_json": "{}",
				})
				return bytes.NewReader(b)
			},
			status: http.StatusBadRequest,
			code:   "nonce_invalid",
		},
		{
			name: "check digit mismatch",
			body: func(t *testing.T, ab *apiBundle) io.Reader {
				n, err := ab.svc.IssueNonce(context.Background())
				if err != nil {
					t.Fatalf("Unexpected error issuing nonce: %v", err)
				}
				raw := profileJSON(t, n.ID, "50.1204")
				raw = regexp.MustCompile(`"innovation":"50\.1204"`).ReplaceAllString(raw, `"innovation":"50.1205"`)
				b, _ := json.Marshal(map[string]any{
					"nonce":        n.ID,
					"timestamp":    ab.now.UnixMilli(),
					"profile_json": raw,
				})
				return bytes.NewReader(b)
			},
			status: http.StatusBadRequest,
			code:   "check_digit_mismatch",
		},
		{
			name: "missing indicator",
			body: func(t *testing.T, ab *apiBundle) io.Reader {
				n, err := ab.svc.IssueNonce(context.Background())
				if err != nil {
					t.Fatalf("Unexpected error issuing nonce: %v", err)
				}
				raw := profileJSON(t, n.ID, "50.0000")
				raw = regexp.MustCompile(`"electronics":"50\.0000",?`).ReplaceAllString(raw, "")
				b, _ := json.Marshal(map[string]any{
					"nonce":        n.ID,
					"timestamp":    ab.now.UnixMilli(),
					"profile_json": raw,
				})
				return bytes.NewReader(b)
			},
			status: http.StatusBadRequest,
			code:   "missing_key_electronics",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ab := mustCreateAPIBundle(t)
			resp, err := http.Post(ab.server.URL+"/verify", "application/json", tc.body(t, ab))
			if err != nil {
				t.Fatalf("Unexpected error performing request: %v", err)
			}
			defer resp.Body.Close()
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Unexpected error decoding response body: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Errorf("POST /verify returned incorrect status - got: %d, want: %d", resp.StatusCode, tc.status)
			}
			if diff := cmp.Diff(tc.code, body["error"]); diff != "" {
				t.Errorf("POST /verify returned incorrect error code (+got, -want):\n%s", diff)
			}
		})
	}
}

func TestValidateTokenMissing(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	status, body := mustDo(t, http.MethodPost, ab.server.URL+"/validate-token", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("POST /validate-token returned incorrect status - got: %d, want: %d", status, http.StatusBadRequest)
	}
	if diff := cmp.Diff("missing_token", body["error"]); diff != "" {
		t.Errorf("POST /validate-token returned incorrect error code (+got, -want):\n%s", diff)
	}
}

func TestCORSPreflight(t *testing.T) {
	ab := mustCreateAPIBundle(t)
	req, err := http.NewRequest(http.MethodOptions, ab.server.URL+"/verify", nil)
	if err != nil {
		t.Fatalf("Unexpected error building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Unexpected error performing request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS /verify returned incorrect status - got: %d, want: %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("OPTIONS /verify returned incorrect allow-origin header - got: %q, want: %q", got, "*")
	}
}
