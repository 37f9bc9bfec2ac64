package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/arklim/timeclock-auth/internal/core/port"
)

const (
	// ModernHashPrefix tags every credential produced by the Argon2 hasher.
	ModernHashPrefix = "$argon2"

	variantID = "argon2id"
	variantI  = "argon2i"

	argon2VersionTag = "v=19"
)

var (
	// ErrInvalidHashFormat indicates an encoded hash could not be parsed.
	ErrInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	// ErrInvalidConfig indicates hashing parameters are outside the accepted bounds.
	ErrInvalidConfig = errors.New("argon2: invalid configuration")
)

// Argon2Config defines tunable parameters for Argon2id PIN hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns parameters sized for interactive logins
// (64 MiB, three passes).
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks the configuration against minimum safe bounds.
func (cfg Argon2Config) Validate() error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", ErrInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", ErrInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", ErrInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", ErrInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", ErrInvalidConfig)
	}
	return nil
}

// Argon2Hasher produces and verifies self-describing Argon2id hashes.
// The configuration is fixed at construction.
type Argon2Hasher struct {
	cfg Argon2Config
}

// NewArgon2Hasher validates cfg and returns a hasher using it.
func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Config returns the parameters used for new hashes.
func (h *Argon2Hasher) Config() Argon2Config {
	return h.cfg
}

// Hash generates an Argon2id hash of pin with a fresh random salt.
func (h *Argon2Hasher) Hash(pin string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(pin), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	return encodeHash(variantID, h.cfg, salt, sum), nil
}

// IsModernHash reports whether value carries the Argon2 tag prefix.
func (h *Argon2Hasher) IsModernHash(value string) bool {
	return IsModernHash(value)
}

// IsModernHash reports whether value carries the Argon2 tag prefix.
func IsModernHash(value string) bool {
	return strings.HasPrefix(value, ModernHashPrefix)
}

// Verify recomputes the hash of pin with the parameters embedded in encoded and
// compares in constant time.
func (h *Argon2Hasher) Verify(pin, encoded string) (bool, error) {
	if encoded == "" {
		return false, nil
	}

	variant, params, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	keyLen := uint32(len(expected))
	var computed []byte
	switch variant {
	case variantID:
		computed = argon2.IDKey([]byte(pin), salt, params.Iterations, params.Memory, params.Parallelism, keyLen)
	case variantI:
		computed = argon2.Key([]byte(pin), salt, params.Iterations, params.Memory, params.Parallelism, keyLen)
	default:
		return false, fmt.Errorf("argon2: unexpected variant %q", variant)
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Format: $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
func encodeHash(variant string, cfg Argon2Config, salt, sum []byte) string {
	return "$" + strings.Join([]string{
		variant,
		argon2VersionTag,
		fmt.Sprintf("m=%d,t=%d,p=%d", cfg.Memory, cfg.Iterations, cfg.Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$")
}

func decodeHash(encoded string) (string, Argon2Config, []byte, []byte, error) {
	if !IsModernHash(encoded) {
		return "", Argon2Config{}, nil, nil, ErrInvalidHashFormat
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return "", Argon2Config{}, nil, nil, ErrInvalidHashFormat
	}

	variant := parts[1]
	if variant != variantID && variant != variantI {
		return "", Argon2Config{}, nil, nil, fmt.Errorf("argon2: unexpected variant %q", variant)
	}

	if parts[2] != argon2VersionTag {
		return "", Argon2Config{}, nil, nil, fmt.Errorf("argon2: unsupported version %q", parts[2])
	}

	memory, iterations, parallelism, err := parseArgon2Params(parts[3])
	if err != nil {
		return "", Argon2Config{}, nil, nil, err
	}

	salt, err := decodeSegment(parts[4])
	if err != nil {
		return "", Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := decodeSegment(parts[5])
	if err != nil {
		return "", Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}

	cfg := Argon2Config{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}

	// Stored hashes may predate the current policy minimums; only reject
	// parameters that cannot be recomputed at all.
	if cfg.Iterations == 0 || cfg.Parallelism == 0 || cfg.Memory == 0 || len(salt) == 0 || len(hash) == 0 {
		return "", Argon2Config{}, nil, nil, ErrInvalidHashFormat
	}

	return variant, cfg, salt, hash, nil
}

// decodeSegment accepts both unpadded (PHC) and padded base64.
func decodeSegment(segment string) ([]byte, error) {
	if strings.HasSuffix(segment, "=") {
		return base64.StdEncoding.DecodeString(segment)
	}
	return base64.RawStdEncoding.DecodeString(segment)
}

func parseArgon2Params(segment string) (uint32, uint32, uint8, error) {
	entries := strings.Split(segment, ",")
	if len(entries) != 3 {
		return 0, 0, 0, ErrInvalidHashFormat
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
	)

	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return 0, 0, 0, ErrInvalidHashFormat
		}

		var (
			v   uint64
			err error
		)
		switch key {
		case "m":
			v, err = strconv.ParseUint(value, 10, 32)
			memory = uint32(v)
		case "t":
			v, err = strconv.ParseUint(value, 10, 32)
			iterations = uint32(v)
		case "p":
			v, err = strconv.ParseUint(value, 10, 8)
			parallelism = uint8(v)
		default:
			return 0, 0, 0, ErrInvalidHashFormat
		}

		if err != nil {
			return 0, 0, 0, fmt.Errorf("argon2: parse %s: %w", key, err)
		}
	}

	return memory, iterations, parallelism, nil
}

var _ port.PinHasher = (*Argon2Hasher)(nil)
