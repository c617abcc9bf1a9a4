package api

import (
	"errors"
	"net/http"

	seal "github.com/whosthedumbass/sealer"
)

// errorCode maps a sealing error onto its machine-readable code, HTTP
// status, and tamper flag. No error is retried; all are surfaced verbatim.
func errorCode(err error) (code string, status int, tampered bool) {
	var pe *seal.PayloadError
	switch {
	case errors.Is(err, seal.ErrBotSuspected):
		return "bot_suspected", http.StatusForbidden, false
	case errors.Is(err, seal.ErrNonceInvalid):
		return "nonce_invalid", http.StatusBadRequest, false
	case errors.Is(err, seal.ErrNonceExpired):
		return "nonce_expired", http.StatusBadRequest, false
	case errors.Is(err, seal.ErrTokenFormat):
		return "invalid_token_format", http.StatusBadRequest, false
	case errors.Is(err, seal.ErrTokenParse):
		return "token_parse_failed", http.StatusBadRequest, false
	case errors.Is(err, seal.ErrSignatureInvalid):
		return "signature_invalid", http.StatusBadRequest, true
	case errors.As(err, &pe):
		return payloadCode(pe), http.StatusBadRequest, false
	}
	return "internal_error", http.StatusInternalServerError, false
}

func payloadCode(pe *seal.PayloadError) string {
	switch {
	case errors.Is(pe.Kind, seal.ErrProfileNotJSON):
		return "profile_not_json"
	case errors.Is(pe.Kind, seal.ErrBadPayload):
		return "bad_profile_obj"
	case errors.Is(pe.Kind, seal.ErrMissingProfile):
		return "missing_profile"
	case errors.Is(pe.Kind, seal.ErrBadMessageCount):
		return "context_messages_not_int"
	case errors.Is(pe.Kind, seal.ErrBadAnalysis):
		return "analysis_summary_not_string"
	case errors.Is(pe.Kind, seal.ErrNonceMismatch):
		return "nonce_mismatch"
	case errors.Is(pe.Kind, seal.ErrMissingIndicator):
		return "missing_key_" + pe.Indicator
	case errors.Is(pe.Kind, seal.ErrBadScore):
		return "bad_score_" + pe.Indicator
	case errors.Is(pe.Kind, seal.ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(pe.Kind, seal.ErrCheckDigitMismatch):
		return "check_digit_mismatch"
	}
	return "payload_invalid"
}
