// Package seal implements an anti-replay sealing protocol: nonce issuance
// and single-use consumption, submission validation against a check digit
// convention, deterministic canonical encoding, HMAC-based signing, and
// signature re-verification of previously sealed tokens.
//
// At a high level, Service issues short-lived nonces into a NonceLedger,
// and Seal redeems one while turning a validated submission into a signed,
// self-contained sealed record. Unseal re-verifies such a record at any
// later time without touching the ledger.
//
// The sealed record is signed, not encrypted: it is tamper-evident, but its
// contents are not confidential.
package seal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/whosthedumbass/sealer/internal/canonical"
	"github.com/whosthedumbass/sealer/internal/sig"
	"github.com/whosthedumbass/sealer/store"
)

const (
	defaultValidityWindow = 2 * time.Minute
	defaultStoreTTL       = 3 * time.Minute
)

// BotVerifier reports whether a bot-verification challenge token passes.
// Implementations should bound the call with a timeout; callers treat errors
// as failures (fail closed).
type BotVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Options represents tunable knobs that control the behavior of Service.
type Options struct {
	// ValidityWindow is the logical lifetime of an issued nonce.
	// Default if unspecified: 2m
	ValidityWindow time.Duration
	// StoreTTL is the retention requested from the nonce ledger. It is
	// deliberately longer than ValidityWindow to tolerate clock and
	// processing skew; the logical window is still enforced at redemption.
	// Default if unspecified: 3m
	StoreTTL time.Duration
	// Indicators is the fixed, ordered indicator set submissions must cover.
	// Default if unspecified: DefaultIndicators
	Indicators []string
}

// Service orchestrates the sealing protocol. It holds no mutable state of
// its own and is safe for concurrent use; the only shared mutable resource
// is the ledger.
type Service struct {
	// Clock can be used to override measurement of time in tests.
	Clock  func() time.Time
	ledger store.NonceLedger
	bots   BotVerifier
	signer *sig.Signer
	opts   *Options
}

// NewService returns a new Service using the provided ledger for nonce
// storage and signing sealed records with HMAC-SHA256 under the provided
// secret. An empty secret is a fatal configuration error. A nil bots
// verifier disables the bot check entirely (an explicit operational bypass,
// not a security default).
func NewService(ledger store.NonceLedger, secret []byte, bots BotVerifier, opts *Options) (*Service, error) {
	signer, err := sig.New(secret)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.ValidityWindow == time.Duration(0) {
		opts.ValidityWindow = defaultValidityWindow
	}
	if opts.StoreTTL == time.Duration(0) {
		opts.StoreTTL = defaultStoreTTL
	}
	if len(opts.Indicators) == 0 {
		opts.Indicators = DefaultIndicators
	}
	return &Service{
		Clock:  func() time.Time { return time.Now() },
		ledger: ledger,
		bots:   bots,
		signer: signer,
		opts:   opts,
	}, nil
}

// Nonce is an issued anti-replay token. It can be redeemed at most once, and
// only before ExpiresAt.
type Nonce struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssueNonce generates a random 128-bit nonce (rendered as 32 uppercase hex
// characters) and records it in the ledger.
func (s *Service) IssueNonce(ctx context.Context) (*Nonce, error) {
	attempts := 0
	for {
		attempts++
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		now := s.Clock()
		n := &Nonce{ID: id, IssuedAt: now, ExpiresAt: now.Add(s.opts.ValidityWindow)}
		err := s.ledger.Put(ctx, id, n.ExpiresAt, s.opts.StoreTTL)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, store.ErrNonceExists) || attempts == 3 {
			return nil, fmt.Errorf("failed to issue nonce in %d attempts, latest error: %v", attempts, err)
		}
	}
}

// SealRequest carries one sealing submission.
type SealRequest struct {
	Nonce          string
	Timestamp      int64
	TranscriptHash string
	// ProfileJSON is the JSON-encoded submission payload (double-encoded on
	// the wire). The signable bytes are assembled from the decoded values,
	// not from this string.
	ProfileJSON    string
	TurnstileToken string
	RemoteIP       string
}

// SealResult is the outcome of a successful Seal.
type SealResult struct {
	Token string
	IQ    int
	Tier  string
	Roast string
}

// UnsealResult is the outcome of a successful Unseal.
type UnsealResult struct {
	IQ        int
	Tier      string
	Timestamp int64
}

// Seal redeems the request's nonce, validates the submission, and returns
// the signed sealed record rendered as a token string. The nonce is consumed
// even if a later step fails: strict anti-replay is favored over retry
// convenience.
func (s *Service) Seal(ctx context.Context, req *SealRequest) (*SealResult, error) {
	expiresAt, err := s.ledger.Take(ctx, req.Nonce)
	if err != nil {
		if errors.Is(err, store.ErrNonceNotFound) {
			return nil, ErrNonceInvalid
		}
		return nil, fmt.Errorf("failed to redeem nonce: %w", err)
	}
	// The store retains entries past the logical window, so presence alone
	// is not sufficient.
	if s.Clock().After(expiresAt) {
		return nil, ErrNonceExpired
	}
	if s.bots != nil {
		ok, err := s.bots.Verify(ctx, req.TurnstileToken, req.RemoteIP)
		if err != nil {
			return nil, fmt.Errorf("bot verification failed (error: %v): %w", err, ErrBotSuspected)
		}
		if !ok {
			return nil, ErrBotSuspected
		}
	}
	sub, err := parseSubmission(req.ProfileJSON)
	if err != nil {
		return nil, err
	}
	scores, err := sub.validate(req.Nonce, s.opts.Indicators)
	if err != nil {
		return nil, err
	}
	iq := normalizeScore(scores)
	msg, err := canonical.Encode(sub.signable(req.Nonce, req.Timestamp, req.TranscriptHash, iq))
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize sealed record: %w", err)
	}
	rec := &Record{
		V:              recordVersion,
		Nonce:          req.Nonce,
		Timestamp:      req.Timestamp,
		TranscriptHash: req.TranscriptHash,
		Payload:        json.RawMessage(req.ProfileJSON),
		IQ:             iq,
		Tier:           TierFor(iq),
		Sig:            s.signer.Sign(msg),
	}
	token, err := EncodeToken(rec)
	if err != nil {
		return nil, err
	}
	return &SealResult{Token: token, IQ: iq, Tier: rec.Tier, Roast: RoastFor(iq)}, nil
}

// Unseal verifies a previously issued token. It is pure and
// time-independent: the ledger is never consulted, and a sealed token
// remains verifiable indefinitely even though the nonce that produced it is
// long gone.
func (s *Service) Unseal(token string) (*UnsealResult, error) {
	rec, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	sub, err := parseSubmission(string(rec.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sealed payload (error: %v): %w", err, ErrTokenParse)
	}
	msg, err := canonical.Encode(sub.signable(rec.Nonce, rec.Timestamp, rec.TranscriptHash, rec.IQ))
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize sealed record (error: %v): %w", err, ErrTokenParse)
	}
	if !s.signer.Verify(msg, rec.Sig) {
		return nil, ErrSignatureInvalid
	}
	// The tier is re-derived from the signed score; the label stored in the
	// record is outside the signature.
	return &UnsealResult{IQ: rec.IQ, Tier: TierFor(rec.IQ), Timestamp: rec.Timestamp}, nil
}

// normalizeScore maps the mean profile score onto the reported scale via a
// fixed affine transform, clamped to [70, 160].
func normalizeScore(scores []float64) int {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	iq := int(math.Round(70 + 0.9*(sum/float64(len(scores)))))
	if iq < 70 {
		iq = 70
	}
	if iq > 160 {
		iq = 160
	}
	return iq
}
