/**
 * @description
 * PIN hashing with Argon2id. Hashes are stored as self-describing encoded
 * strings ($argon2id$v=...$m=...,t=...,p=...$salt$hash) so parameters can be
 * raised later without invalidating existing cards. Verification recomputes
 * with the parameters embedded in the stored string and compares in constant
 * time.
 *
 * @dependencies
 * - crypto/rand, crypto/subtle, encoding/base64: Standard Go libraries.
 * - golang.org/x/crypto/argon2: The Argon2id implementation.
 */
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time      = 3
	argon2Memory    = 64 * 1024 // 64 MB
	argon2Threads   = 2
	argon2KeyLength = 32
	saltLength      = 16
)

// PINHasher hashes and verifies card PINs.
type PINHasher struct {
	time      uint32
	memory    uint32
	threads   uint8
	keyLength uint32
}

// NewPINHasher creates a hasher with the server's standard parameters.
func NewPINHasher() *PINHasher {
	return &PINHasher{
		time:      argon2Time,
		memory:    argon2Memory,
		threads:   argon2Threads,
		keyLength: argon2KeyLength,
	}
}

// Hash generates an encoded Argon2id hash for the given PIN.
func (ph *PINHasher) Hash(pin string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(pin), salt, ph.time, ph.memory, ph.threads, ph.keyLength)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		ph.memory,
		ph.time,
		ph.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// Verify checks a PIN against a stored encoded hash.
func (ph *PINHasher) Verify(pin, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("failed to parse version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("incompatible argon2 version")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	testHash := argon2.IDKey([]byte(pin), salt, time, memory, threads, uint32(len(hash)))

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare(hash, testHash) == 1, nil
}
