package seal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultIndicators is the fixed, ordered set of profile indicators a
// submission must cover. The first entry supplies the reference check digit.
// Extra profile keys outside this set are tolerated but not validated.
var DefaultIndicators = []string{
	"logical_reasoning", "pattern_recognition", "verbal_comprehension",
	"mathematical_ability", "spatial_reasoning", "memory_recall",
	"processing_speed", "abstract_thinking", "critical_analysis",
	"problem_decomposition", "deductive_inductive_reasoning",
	"systems_thinking", "creative_problem_solving", "knowledge_integration",
	"deep_thinking", "critical_thinking", "building", "electronics",
	"software", "communication", "creativity", "analysis", "leadership",
	"research", "problem_solving", "technical_depth", "collaboration",
	"innovation",
}

// Submission is the client-assembled payload carried inside the
// double-encoded profile_json field of a seal request. Values are retained
// exactly as decoded (numbers as json.Number) so that the signable subset
// re-encodes byte-identically on both the seal and unseal paths.
type Submission struct {
	raw map[string]any
}

func parseSubmission(raw string) (*Submission, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &PayloadError{Kind: ErrProfileNotJSON}
	}
	if dec.More() {
		return nil, &PayloadError{Kind: ErrProfileNotJSON}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &PayloadError{Kind: ErrBadPayload}
	}
	return &Submission{raw: m}, nil
}

// validate enforces the submission's structural shape and the check digit
// consistency rule, short-circuiting on the first failure. On success it
// returns the parsed score values in indicator order.
//
// The check digit rule is a deliberately weak economic deterrent: a client
// that edits one score without recomputing its fractional checksum, or
// without bringing the sibling scores into agreement, is immediately
// detectable. Real tamper evidence comes from the record signature.
func (s *Submission) validate(expectedNonce string, indicators []string) ([]float64, error) {
	profile, ok := s.raw["profile"].(map[string]any)
	if !ok {
		return nil, &PayloadError{Kind: ErrMissingProfile}
	}
	n, ok := s.raw["context_messages"].(json.Number)
	if !ok {
		return nil, &PayloadError{Kind: ErrBadMessageCount}
	}
	if _, err := n.Int64(); err != nil {
		return nil, &PayloadError{Kind: ErrBadMessageCount}
	}
	if _, ok := s.raw["analysis_summary"].(string); !ok {
		return nil, &PayloadError{Kind: ErrBadAnalysis}
	}
	if nonce, _ := s.raw["nonce"].(string); nonce != expectedNonce {
		return nil, &PayloadError{Kind: ErrNonceMismatch}
	}
	for _, k := range indicators {
		if _, ok := profile[k]; !ok {
			return nil, &PayloadError{Kind: ErrMissingIndicator, Indicator: k}
		}
	}
	_, ref, err := parseScore(profile[indicators[0]])
	if err != nil {
		return nil, &PayloadError{Kind: ErrBadScore, Indicator: indicators[0]}
	}
	scores := make([]float64, 0, len(indicators))
	for _, k := range indicators {
		v, check, err := parseScore(profile[k])
		if err != nil {
			return nil, &PayloadError{Kind: ErrBadScore, Indicator: k}
		}
		if v < 0 || v > 100 {
			return nil, &PayloadError{Kind: ErrScoreOutOfRange, Indicator: k}
		}
		if check != ref {
			return nil, &PayloadError{Kind: ErrCheckDigitMismatch, Indicator: k}
		}
		scores = append(scores, v)
	}
	return scores, nil
}

// signable assembles the subset of the sealed record covered by the
// signature. Payload values pass through exactly as decoded, so seal and
// unseal derive byte-identical canonical messages.
func (s *Submission) signable(nonce string, timestamp int64, transcriptHash string, iq int) map[string]any {
	return map[string]any{
		"nonce":            nonce,
		"timestamp":        timestamp,
		"transcript_hash":  transcriptHash,
		"profile":          s.raw["profile"],
		"context_messages": s.raw["context_messages"],
		"analysis_summary": s.raw["analysis_summary"],
		"iq":               iq,
	}
}

var scoreFormat = regexp.MustCompile(`^\d{1,3}\.\d{4}$`)

// parseScore normalizes a submitted score (a JSON number or a fixed-format
// decimal string) and derives its check digit: the sum of the four
// fractional digits, mod 10.
func parseScore(v any) (value float64, check int, err error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		f, ferr := t.Float64()
		if ferr != nil {
			return 0, 0, ferr
		}
		s = strconv.FormatFloat(f, 'f', 4, 64)
	default:
		return 0, 0, fmt.Errorf("score has type %T, want string or number", v)
	}
	if !scoreFormat.MatchString(s) {
		return 0, 0, fmt.Errorf("score %q does not match the fixed decimal format", s)
	}
	value, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, err
	}
	sum := 0
	for _, c := range s[len(s)-4:] {
		sum += int(c - '0')
	}
	return value, sum % 10, nil
}
