package seal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// TokenPrefix is the literal tag prepended to the encoded sealed record.
const TokenPrefix = "DNA2::"

// recordVersion tags the sealed record layout.
const recordVersion = 1

// Record is the immutable sealed record embedded in a token. It is fully
// self-contained: verification re-derives the signature from the record's
// own fields and never consults the nonce ledger.
type Record struct {
	V              int             `json:"v"`
	Nonce          string          `json:"nonce"`
	Timestamp      int64           `json:"timestamp"`
	TranscriptHash string          `json:"transcript_hash"`
	Payload        json.RawMessage `json:"payload"`
	IQ             int             `json:"iq"`
	Tier           string          `json:"tier"`
	Sig            string          `json:"sig"`
}

// EncodeToken renders the record as a transportable token string.
func EncodeToken(rec *Record) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sealed record: %w", err)
	}
	return TokenPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeToken parses a token string back into its sealed record. It returns
// ErrTokenFormat if the tag prefix is missing, and ErrTokenParse if the body
// cannot be decoded or carries an unsupported record version.
func DecodeToken(token string) (*Record, error) {
	b64, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return nil, ErrTokenFormat
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token body (error: %v): %w", err, ErrTokenParse)
	}
	rec := new(Record)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to parse sealed record (error: %v): %w", err, ErrTokenParse)
	}
	if rec.V != recordVersion {
		return nil, fmt.Errorf("unsupported sealed record version %d: %w", rec.V, ErrTokenParse)
	}
	return rec, nil
}
