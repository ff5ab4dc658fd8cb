package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty password.
	ErrEmptyPassword = errors.New("password: empty password")
	// ErrMalformedHash is returned by Verify when the stored hash cannot be parsed.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Hasher hashes and verifies passwords. Verify returns false for any
// mismatch; the error is non-nil only when encodedHash is unusable.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Algorithm names a supported hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. cost must be within bcrypt's range.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}

// Config selects and parameterizes the hasher returned by New.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig returns bcrypt at cost 12 with default argon2id parameters
// kept for verification of argon2id hashes.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: 12,
		Argon2:     DefaultArgon2Config(),
	}
}

// Auto hashes with the configured algorithm and verifies hashes from either
// supported algorithm, dispatching on the encoded prefix.
type Auto struct {
	primary Algorithm
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// New builds an Auto hasher from cfg.
func New(cfg Config) (*Auto, error) {
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmBcrypt
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	return &Auto{primary: cfg.Algorithm, bcrypt: b, argon2: a}, nil
}

func (h *Auto) Hash(password string) (string, error) {
	if h.primary == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

func (h *Auto) Verify(password, encodedHash string) (bool, error) {
	if strings.HasPrefix(encodedHash, argon2Prefix) {
		return h.argon2.Verify(password, encodedHash)
	}
	return h.bcrypt.Verify(password, encodedHash)
}

// NeedsUpgrade is true when the hash uses the non-primary algorithm or
// weaker parameters than the primary one.
func (h *Auto) NeedsUpgrade(encodedHash string) (bool, error) {
	isArgon := strings.HasPrefix(encodedHash, argon2Prefix)
	switch {
	case isArgon && h.primary == AlgorithmArgon2id:
		return h.argon2.NeedsUpgrade(encodedHash)
	case !isArgon && h.primary == AlgorithmBcrypt:
		return h.bcrypt.NeedsUpgrade(encodedHash)
	case isArgon:
		if _, err := decodePHC(encodedHash); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	default:
		if _, err := bcrypt.Cost([]byte(encodedHash)); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	}
}
