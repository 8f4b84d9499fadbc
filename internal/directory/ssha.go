package directory

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// PasswordEncoder produces the userPassword attribute value for new entries.
type PasswordEncoder interface {
	Encode(password string) (string, error)
}

// SSHAEncoder implements the salted-SHA1 scheme the existing directory
// requires: digest = SHA1(password || salt) with a 4-byte random salt,
// stored as "{SSHA}" + base64(digest || salt). SHA1 is cryptographically
// weak; the scheme is kept only for compatibility with entries already in
// the tree, and this interface is the seam for replacing it.
type SSHAEncoder struct{}

const sshaPrefix = "{SSHA}"

func (SSHAEncoder) Encode(password string) (string, error) {
	salt := make([]byte, 4)
	if _, err := rand.Read(salt); err != nil {
		return "", domain.ErrRandomFailed(err)
	}

	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	digest := h.Sum(nil)

	return sshaPrefix + base64.StdEncoding.EncodeToString(append(digest, salt...)), nil
}
