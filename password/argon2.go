package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix = "$argon2id$"
	paramsFormat = "m=%d,t=%d,p=%d"
)

// Lower bounds for argon2id parameters, both for configuration and for
// hashes read back from storage.
const (
	MinArgon2MemoryKB   uint32 = 8 * 1024
	MinArgon2Time       uint32 = 1
	MinArgon2Parallel   uint8  = 1
	MinArgon2SaltLength uint32 = 16
	MinArgon2KeyLength  uint32 = 16
)

// Argon2Config holds the argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used when none are configured.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the minimums.
func (c Argon2Config) Validate() error {
	switch {
	case c.Memory < MinArgon2MemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", MinArgon2MemoryKB)
	case c.Time < MinArgon2Time:
		return fmt.Errorf("argon2 time must be >= %d", MinArgon2Time)
	case c.Parallelism < MinArgon2Parallel:
		return fmt.Errorf("argon2 parallelism must be >= %d", MinArgon2Parallel)
	case c.SaltLength < MinArgon2SaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", MinArgon2SaltLength)
	case c.KeyLength < MinArgon2KeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", MinArgon2KeyLength)
	}
	return nil
}

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string, with
// salt and key in unpadded standard base64.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) String() string {
	var b strings.Builder
	b.WriteString(argon2Prefix)
	fmt.Fprintf(&b, "v=%d$", argon2.Version)
	fmt.Fprintf(&b, paramsFormat, p.memory, p.time, p.parallelism)
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(p.salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(p.key))
	return b.String()
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
}

// decodePHC parses encoded. Parameters must be in canonical form.
func decodePHC(encoded string) (phc, error) {
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return phc{}, errors.New("not an argon2id hash")
	}
	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if len(fields) != 4 {
		return phc{}, errors.New("want 4 fields after the algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return phc{}, fmt.Errorf("version: %v", err)
	}
	if version != argon2.Version {
		return phc{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p phc
	if _, err := fmt.Sscanf(fields[1], paramsFormat, &p.memory, &p.time, &p.parallelism); err != nil {
		return phc{}, fmt.Errorf("parameters: %v", err)
	}
	if fields[1] != fmt.Sprintf(paramsFormat, p.memory, p.time, p.parallelism) {
		return phc{}, errors.New("parameters are not canonical")
	}
	if p.memory < MinArgon2MemoryKB || p.time < MinArgon2Time || p.parallelism < MinArgon2Parallel {
		return phc{}, errors.New("parameters below minimum")
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return phc{}, fmt.Errorf("salt: %v", err)
	}
	if uint32(len(p.salt)) < MinArgon2SaltLength {
		return phc{}, errors.New("salt too short")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil {
		return phc{}, fmt.Errorf("key: %v", err)
	}
	if uint32(len(p.key)) < MinArgon2KeyLength {
		return phc{}, errors.New("key too short")
	}
	return p, nil
}

// Argon2 hashes passwords with argon2id into PHC strings.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted hash. Password bytes are used as given, with
// no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	p.key = argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash using the
// parameters stored in the hash. A malformed hash yields false and an
// error wrapping ErrMalformedHash.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than, or shaped
// differently from, what the hasher produces now.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	weaker := p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism ||
		uint32(len(p.salt)) < a.config.SaltLength
	return weaker || uint32(len(p.key)) != a.config.KeyLength, nil
}
