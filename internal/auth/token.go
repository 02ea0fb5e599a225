// internal/auth/token.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// GuestPrefix marks identities that were never registered. Their documents
// stay on the local store.
const GuestPrefix = "guest:"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Identity is who is calling. The rest of the service only uses ID, as the
// owner of templates and sessions.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"username"`
	Email string `json:"email,omitempty"`
	Guest bool   `json:"isGuest"`
}

// NewGuest returns a fresh guest identity.
func NewGuest(name string) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Guest"
	}
	return Identity{ID: GuestPrefix + uuid.NewString(), Name: name, Guest: true}
}

// IsGuest reports whether ownerID belongs to a guest.
func IsGuest(ownerID string) bool {
	return strings.HasPrefix(ownerID, GuestPrefix)
}

type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies EdDSA tokens.
type Issuer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	ttl     time.Duration // 0 => tokens never expire
	clock   clockwork.Clock
}

// NewIssuer builds an Issuer around an existing key.
func NewIssuer(key ed25519.PrivateKey, ttl time.Duration, clock clockwork.Clock) *Issuer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{
		private: key,
		public:  key.Public().(ed25519.PublicKey),
		ttl:     ttl,
		clock:   clock,
	}
}

// GenerateIssuer creates an Issuer with a fresh key pair. Tokens do not
// survive a restart.
func GenerateIssuer(ttl time.Duration, clock clockwork.Clock) (*Issuer, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return NewIssuer(priv, ttl, clock), nil
}

// LoadIssuer reads a raw ed25519 private key (or its 32 byte seed) from path.
func LoadIssuer(path string, ttl time.Duration, clock clockwork.Clock) (*Issuer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	switch len(data) {
	case ed25519.PrivateKeySize:
		return NewIssuer(ed25519.PrivateKey(data), ttl, clock), nil
	case ed25519.SeedSize:
		return NewIssuer(ed25519.NewKeyFromSeed(data), ttl, clock), nil
	}
	return nil, fmt.Errorf("private key file %s has %d bytes, want %d or %d", path, len(data), ed25519.SeedSize, ed25519.PrivateKeySize)
}

// ParseTTL reads a TOKEN_EXPIRE_TIME style value. "", "0" and "never" mean no
// expiry.
func ParseTTL(s string) (time.Duration, error) {
	switch s {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Issue signs a token for id.
func (i *Issuer) Issue(id Identity) (string, error) {
	now := i.clock.Now()
	c := claims{
		Name:  id.Name,
		Email: id.Email,
		Guest: id.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(i.private)
}

// Verify checks the signature and expiry and returns the identity it carries.
func (i *Issuer) Verify(token string) (Identity, error) {
	var c claims
	t, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.public, nil
	}, jwt.WithTimeFunc(i.clock.Now), jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: c.Subject, Name: c.Name, Email: c.Email, Guest: c.Guest || IsGuest(c.Subject)}, nil
}
