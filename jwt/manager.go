package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token as an access or a refresh credential.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// SigningMethod is the JWS algorithm identifier used for every token.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "HS256"
	MethodHS384 SigningMethod = "HS384"
	MethodHS512 SigningMethod = "HS512"
)

const minSecretBytes = 32

// Whole-second NumericDates would let a token issued at a fractional second
// expire before its full ttl.
func init() {
	jwt.TimePrecision = time.Millisecond
}

var (
	// ErrInvalidToken is returned for malformed, expired, tampered or
	// foreign-algorithm tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongPurpose is returned when the purpose claim does not match.
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Config is the process-wide codec configuration.
type Config struct {
	Secret        []byte
	SigningMethod SigningMethod
	Issuer        string
	Leeway        time.Duration
}

// Claims is the claim set carried by every session token. The purpose is
// serialized under "type" so tokens stay readable by older issuers.
type Claims struct {
	Purpose Purpose `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens. It holds no mutable state, so
// Issue and Verify are safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// NewManager validates cfg and returns a codec bound to one secret and one
// algorithm.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	method, err := methodFor(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg, method: method}, nil
}

// Algorithm returns the JWS alg header value this manager signs with.
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// Issue signs a token for subject with the given purpose, valid from now
// until now+ttl. It returns the encoded token and its expiry.
func (m *Manager) Issue(subject string, purpose Purpose, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}
	switch purpose {
	case PurposeAccess, PurposeRefresh:
	default:
		return "", time.Time{}, fmt.Errorf("unsupported purpose %q", purpose)
	}

	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			Issuer:    m.config.Issuer,
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(m.method, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer and expiry at now and returns
// the claims. Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(tokenStr string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %v", t.Header["alg"])
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}

// VerifyPurpose verifies the token and requires the purpose claim to equal
// want. Access checks also accept tokens without a purpose claim, which
// older issuers produced for access tokens only.
func (m *Manager) VerifyPurpose(tokenStr string, want Purpose, now time.Time) (*Claims, error) {
	claims, err := m.Verify(tokenStr, now)
	if err != nil {
		return nil, err
	}

	switch {
	case claims.Purpose == want:
	case want == PurposeAccess && claims.Purpose == "":
	default:
		return nil, fmt.Errorf("%w: %w: got %q, want %q", ErrInvalidToken, ErrWrongPurpose, claims.Purpose, want)
	}

	return claims, nil
}

func methodFor(m SigningMethod) (jwt.SigningMethod, error) {
	switch SigningMethod(strings.ToUpper(string(m))) {
	case MethodHS256, "":
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing method %q", m)
	}
}
