package seal

import (
	"errors"
	"fmt"
)

var (
	// ErrNonceInvalid indicates that the redeemed nonce was never issued,
	// was already consumed, or has expired out of the store.
	ErrNonceInvalid = errors.New("nonce invalid")
	// ErrNonceExpired indicates that the nonce was present in the store but
	// past its logical validity window.
	ErrNonceExpired = errors.New("nonce expired")
	// ErrBotSuspected indicates that the bot-verification collaborator did
	// not confirm the request, or could not be reached (fail closed).
	ErrBotSuspected = errors.New("bot suspected")
	// ErrTokenFormat indicates a token string without the literal tag prefix.
	ErrTokenFormat = errors.New("invalid token format")
	// ErrTokenParse indicates a token whose body could not be decoded into a
	// sealed record.
	ErrTokenParse = errors.New("token parse failed")
	// ErrSignatureInvalid indicates that the recomputed signature does not
	// match the one embedded in the sealed record: the record was tampered
	// with, or sealed under a different secret.
	ErrSignatureInvalid = errors.New("signature invalid")
)

// Payload validation failure kinds, surfaced wrapped in a PayloadError.
var (
	ErrProfileNotJSON     = errors.New("profile payload is not valid JSON")
	ErrBadPayload         = errors.New("profile payload is not an object")
	ErrMissingProfile     = errors.New("missing profile object")
	ErrBadMessageCount    = errors.New("context_messages is not an integer")
	ErrBadAnalysis        = errors.New("analysis_summary is not a string")
	ErrNonceMismatch      = errors.New("embedded nonce does not match")
	ErrMissingIndicator   = errors.New("missing profile indicator")
	ErrBadScore           = errors.New("malformed score")
	ErrScoreOutOfRange    = errors.New("score out of range")
	ErrCheckDigitMismatch = errors.New("check digit mismatch")
)

// PayloadError is the error type returned for submission validation
// failures. Indicator names the offending profile key when one applies.
type PayloadError struct {
	Kind      error
	Indicator string
}

func (e *PayloadError) Error() string {
	if e.Indicator != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Indicator)
	}
	return e.Kind.Error()
}

func (e *PayloadError) Unwrap() error {
	return e.Kind
}
