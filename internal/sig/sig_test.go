package sig_test

import (
	"errors"
	"testing"

	"github.com/whosthedumbass/sealer/internal/sig"
)

func TestNewEmptySecret(t *testing.T) {
	if _, err := sig.New(nil); !errors.Is(err, sig.ErrEmptySecret) {
		t.Errorf("New(nil) returned incorrect error - got: %v, want: %v", err, sig.ErrEmptySecret)
	}
	if _, err := sig.New([]byte{}); !errors.Is(err, sig.ErrEmptySecret) {
		t.Errorf("New([]byte{}) returned incorrect error - got: %v, want: %v", err, sig.ErrEmptySecret)
	}
}

// Known HMAC-SHA256 value for the classic fox message under the key "key".
func TestSignKnownVector(t *testing.T) {
	s, err := sig.New([]byte("key"))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	const want = "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got := s.Sign([]byte("The quick brown fox jumps over the lazy dog")); got != want {
		t.Errorf("Sign() returned incorrect signature - got: %s, want: %s", got, want)
	}
}

func TestVerify(t *testing.T) {
	s, err := sig.New([]byte("test-secret"))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	other, err := sig.New([]byte("test-secret-2"))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	msg := []byte(`{"analysis_summary":"ok","iq":115}`)
	sigHex := s.Sign(msg)
	testCases := []struct {
		name   string
		verify func() bool
		want   bool
	}{
		{
			name:   "valid",
			verify: func() bool { return s.Verify(msg, sigHex) },
			want:   true,
		},
		{
			name:   "message changed",
			verify: func() bool { return s.Verify([]byte(`{"analysis_summary":"ok","iq":116}`), sigHex) },
			want:   false,
		},
		{
			name:   "secret changed",
			verify: func() bool { return other.Verify(msg, sigHex) },
			want:   false,
		},
		{
			name:   "signature flipped",
			verify: func() bool { return s.Verify(msg, flipHex(sigHex)) },
			want:   false,
		},
		{
			name:   "signature truncated",
			verify: func() bool { return s.Verify(msg, sigHex[:32]) },
			want:   false,
		},
		{
			name:   "signature not hex",
			verify: func() bool { return s.Verify(msg, "not-hex") },
			want:   false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.verify(); got != tc.want {
				t.Errorf("Verify() returned incorrect result - got: %t, want: %t", got, tc.want)
			}
		})
	}
}

func flipHex(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
