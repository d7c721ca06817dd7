package feed

import (
	"crypto/tls"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedURLs(t *testing.T) {
	urls := feedURLs("2")
	assert.Equal(t, []string{
		"https://mail.google.com/mail/u/2/feed/atom",
		"https://mail.google.com/mail/feed/atom",
	}, urls)
}

func TestIsCertVerifyError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.False(t, IsCertVerifyError(nil))
	})

	t.Run("typed verification error", func(t *testing.T) {
		err := fmt.Errorf("fetch: %w", &tls.CertificateVerificationError{Err: errors.New("bad chain")})
		assert.True(t, IsCertVerifyError(err))
	})

	t.Run("string fallbacks", func(t *testing.T) {
		assert.True(t, IsCertVerifyError(errors.New("x509: certificate signed by unknown authority")))
		assert.True(t, IsCertVerifyError(errors.New("CERTIFICATE_VERIFY_FAILED while fetching")))
		assert.True(t, IsCertVerifyError(errors.New("unable to get local issuer certificate")))
	})

	t.Run("unrelated errors", func(t *testing.T) {
		assert.False(t, IsCertVerifyError(errors.New("connection refused")))
		assert.False(t, IsCertVerifyError(errors.New("feed returned status 401")))
	})
}
