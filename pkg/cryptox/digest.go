package cryptox

import (
	"crypto/md5" // #nosec G501 - required for compatibility with existing stored hashes
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the width in bytes of every supported digest (128 bits).
const DigestSize = 16

var ErrUnknownDigest = errors.New("cryptox: unknown digest algorithm")

// Digest derives a salted password hash. Sum returns lowercase hex, always
// 2*DigestSize characters long.
type Digest interface {
	Name() string
	Sum(salt, password string) string
}

var (
	// MD5 is the default digest and matches hashes produced by older
	// deployments: md5(salt + password) as 32 lowercase hex characters.
	MD5 Digest = md5Digest{}

	// Blake2b is BLAKE2b truncated to 128 bits, same width as MD5.
	Blake2b Digest = blake2bDigest{}
)

type md5Digest struct{}

func (md5Digest) Name() string { return "md5" }

func (md5Digest) Sum(salt, password string) string {
	sum := md5.Sum([]byte(salt + password)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

type blake2bDigest struct{}

func (blake2bDigest) Name() string { return "blake2b" }

func (blake2bDigest) Sum(salt, password string) string {
	h, err := blake2b.New(DigestSize, nil)
	if err != nil {
		// Only possible with an out of range size or an oversized key.
		panic(fmt.Sprintf("cryptox: blake2b init: %v", err))
	}
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// DigestByName resolves a digest from its configured name. An empty name
// selects MD5.
func DigestByName(name string) (Digest, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return MD5, nil
	case "blake2b", "blake2b-128":
		return Blake2b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDigest, name)
	}
}

// EqualHash compares two hex hashes in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
