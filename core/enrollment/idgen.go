package enrollment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

var (
	nowFunc = time.Now // mockable

	// Verification codes are read over the phone and typed by parents;
	// uppercase alphanumeric keeps them unambiguous enough while staying
	// hard to stumble upon within the expiry window.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// studentNumber formats a school-scoped student number: the issue year
// followed by a zero-padded sequence, e.g. "20260042".
func studentNumber(year, seq int) string {
	return fmt.Sprintf("%d%04d", year, seq)
}

// generateVerificationCode returns a fixed-length, uppercase alphanumeric
// code. It gates a convenience confirmation, not an authorization boundary,
// but is still drawn from crypto/rand to avoid casual collision.
func generateVerificationCode(length int) (string, error) {
	return randomString(codeAlphabet, length)
}

// generatePassword returns a one-time credential for a provisioned account.
func generatePassword(length int) (string, error) {
	return randomString(passwordAlphabet, length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random source")
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
