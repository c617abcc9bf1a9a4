// Package api implements the HTTP shell around the sealing service: route
// registration, request/response envelopes, and the error code mapping.
package api

import (
	"encoding/json"
	"net"
	"net/http"

	"golang.org/x/exp/slog"

	seal "github.com/whosthedumbass/sealer"
)

const (
	serviceName    = "WhosTheDumbass Anti-Tamper API"
	serviceVersion = "2.2"
)

// Router registers the sealing service endpoints on an http.ServeMux.
type Router struct {
	svc *seal.Service
}

// NewRouter returns a new Router serving the provided sealing service.
func NewRouter(svc *seal.Service) *Router {
	return &Router{svc: svc}
}

// Register installs all routes on mux.
func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", rt.handleRoot)
	mux.HandleFunc("/health", rt.handleHealth)
	mux.HandleFunc("/nonce", rt.handleNonce)                  // GET
	mux.HandleFunc("/verify", rt.handleVerify)                // POST
	mux.HandleFunc("/validate-token", rt.handleValidateToken) // POST
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "not_found"})
}

func writeError(w http.ResponseWriter, err error) {
	code, status, tampered := errorCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	body := map[string]any{"ok": false, "error": code}
	if tampered {
		body["tampered"] = true
	}
	writeJSON(w, status, body)
}

func (rt *Router) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeNotFound(w)
		return
	}
	rt.handleHealth(w, r)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GET /nonce - issue a new single-use nonce.
func (rt *Router) handleNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeNotFound(w)
		return
	}
	n, err := rt.svc.IssueNonce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"nonce":      n.ID,
		"timestamp":  n.IssuedAt.UnixMilli(),
		"expires_at": n.ExpiresAt.UnixMilli(),
		"expires_in": int(n.ExpiresAt.Sub(n.IssuedAt).Seconds()),
	})
}

type verifyRequest struct {
	Nonce          string `json:"nonce"`
	Timestamp      int64  `json:"timestamp"`
	TranscriptHash string `json:"transcript_hash"`
	ProfileJSON    string `json:"profile_json"`
	TurnstileToken string `json:"turnstile_token"`
}

// POST /verify - redeem a nonce and seal the submitted result.
func (rt *Router) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeNotFound(w)
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad_json"})
		return
	}
	res, err := rt.svc.Seal(r.Context(), &seal.SealRequest{
		Nonce:          req.Nonce,
		Timestamp:      req.Timestamp,
		TranscriptHash: req.TranscriptHash,
		ProfileJSON:    req.ProfileJSON,
		TurnstileToken: req.TurnstileToken,
		RemoteIP:       clientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"token": res.Token,
		"iq":    res.IQ,
		"tier":  res.Tier,
		"roast": res.Roast,
	})
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

// POST /validate-token - re-verify a previously sealed token.
func (rt *Router) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeNotFound(w)
		return
	}
	var req validateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad_json"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_token"})
		return
	}
	res, err := rt.svc.Unseal(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"valid":     true,
		"iq":        res.IQ,
		"tier":      res.Tier,
		"timestamp": res.Timestamp,
	})
}

// clientIP extracts the connecting client address, preferring the header set
// by the edge proxy.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return host
}
