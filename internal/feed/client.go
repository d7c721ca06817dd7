package feed

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Client fetches the mailbox Atom feed with authenticated session cookies.
type Client struct {
	jar       http.CookieJar
	timeout   time.Duration
	userAgent string
	logger    *log.Logger
	verbose   bool
}

// Option customizes client behavior.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger overrides the logger used for channel diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithVerbose enables per-URL diagnostics.
func WithVerbose(verbose bool) Option {
	return func(c *Client) { c.verbose = verbose }
}

// NewClient returns a feed client using the supplied cookie jar for
// authentication. The engine does not manage how the jar was obtained.
func NewClient(jar http.CookieJar, opts ...Option) *Client {
	c := &Client{
		jar:       jar,
		timeout:   20 * time.Second,
		userAgent: defaultUserAgent,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) logf(format string, args ...any) {
	if c.verbose {
		c.logger.Printf("[feed] "+format, args...)
	}
}

func feedURLs(mailbox string) []string {
	return []string{
		fmt.Sprintf("https://mail.google.com/mail/u/%s/feed/atom", mailbox),
		"https://mail.google.com/mail/feed/atom",
	}
}

// Fetch retrieves the raw feed payload for a mailbox, trying the
// account-indexed URL first. insecure disables TLS certificate
// verification and exists only for the one relaxed-verification retry the
// orchestrator is allowed.
func (c *Client) Fetch(ctx context.Context, mailbox string, insecure bool) ([]byte, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		c.logf("fetching with TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	httpClient := &http.Client{
		Jar:       c.jar,
		Timeout:   c.timeout,
		Transport: transport,
	}

	var lastErr error
	for _, feedURL := range feedURLs(mailbox) {
		c.logf("trying feed URL: %s", feedURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/atom+xml,text/xml,*/*")

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logf("feed URL failed: %v", err)
			continue
		}
		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("feed returned status %d", resp.StatusCode)
			c.logf("feed URL failed: %v", lastErr)
			continue
		}
		if !strings.Contains(string(payload), "<feed") {
			lastErr = errors.New("feed response did not include <feed> payload")
			continue
		}
		return payload, nil
	}
	if lastErr == nil {
		lastErr = errors.New("feed lookup failed with no diagnostic")
	}
	return nil, fmt.Errorf("feed lookup failed: %w", lastErr)
}

// IsCertVerifyError reports whether an error came from TLS certificate
// verification, which is the only transport failure eligible for the
// relaxed-verification retry.
func IsCertVerifyError(err error) bool {
	if err == nil {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	lowered := strings.ToLower(err.Error())
	return strings.Contains(lowered, "certificate_verify_failed") ||
		strings.Contains(lowered, "x509: certificate") ||
		strings.Contains(lowered, "unable to get local issuer certificate")
}
