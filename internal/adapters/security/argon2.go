package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/clearpay/portal/internal/domain"
)

const (
	argonSaltLen = 16
	argonKeyLen  = 32
)

// Argon2Params tunes the memory-hard cost. Defaults are sized so a single
// verification takes tens of milliseconds on commodity hardware; raising cost
// is the mitigation as hardware improves.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params is the production baseline.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
	}
}

// Argon2Hasher implements password hashing with argon2id and a per-password
// random salt, encoded in the standard PHC digest format.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher creates a hasher, falling back to defaults for zero params.
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	def := DefaultArgon2Params()
	if params.MemoryKiB == 0 {
		params.MemoryKiB = def.MemoryKiB
	}
	if params.Iterations == 0 {
		params.Iterations = def.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = def.Parallelism
	}
	return &Argon2Hasher{params: params}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	if err := domain.ValidatePasswordInput(password); err != nil {
		return "", err
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the parameters embedded in it, so old
// hashes stay verifiable after cost upgrades. Malformed digests return false
// through the same path as a wrong password.
func (h *Argon2Hasher) Verify(password, digest string) bool {
	if domain.ValidatePasswordInput(password) != nil {
		return false
	}

	salt, key, params, ok := decodeDigest(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

func decodeDigest(digest string) (salt, key []byte, params Argon2Params, ok bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, Argon2Params{}, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, Argon2Params{}, false
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Iterations, &parallelism); err != nil {
		return nil, nil, Argon2Params{}, false
	}
	if params.MemoryKiB == 0 || params.Iterations == 0 || parallelism == 0 || parallelism > 255 {
		return nil, nil, Argon2Params{}, false
	}
	params.Parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, Argon2Params{}, false
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, Argon2Params{}, false
	}

	return salt, key, params, true
}
