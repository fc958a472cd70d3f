// Package httpclient builds the SSRF-safe HTTP clients every strategy in
// the cascade shares: redirect validation, private-IP blocking, and a
// bounded body reader.
package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrPrivateIP        = errors.New("url resolves to a private ip")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrBodyTooLarge     = errors.New("response body too large")
	ErrTimeout          = errors.New("request timed out")
)

// ValidateURL rejects non-http(s) schemes, missing hosts, and (when
// denyPrivateIPs is set) hostnames that resolve to a private, loopback, or
// link-local address.
func ValidateURL(rawURL string, denyPrivateIPs bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrInvalidURL)
	}
	if !denyPrivateIPs {
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", ErrInvalidURL, hostname, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname %q resolves to %s", ErrPrivateIP, hostname, ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// Options configures NewSafeClient.
type Options struct {
	Timeout        time.Duration
	MaxRedirects   int
	DenyPrivateIPs bool
}

// NewSafeClient returns an *http.Client that validates every redirect
// target for SSRF and caps the redirect chain length.
func NewSafeClient(opts Options) *http.Client {
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := ValidateURL(req.URL.String(), opts.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target rejected: %w", err)
			}
			return nil
		},
	}
}

// ReadLimited reads up to maxBytes+1 from r and returns ErrBodyTooLarge if
// the response exceeds the cap.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrBodyTooLarge, len(data), maxBytes)
	}
	return data, nil
}

// Get issues a GET with the given user agent and returns the body, the
// final response URL (post-redirect), and the status code.
func Get(ctx context.Context, client *http.Client, timeout time.Duration, rawURL, userAgent string, maxBytes int64) (body []byte, finalURL string, status int, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, "", 0, fmt.Errorf("%w: exceeded %v", ErrTimeout, timeout)
		}
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	data, err := ReadLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, "", resp.StatusCode, err
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return data, final, resp.StatusCode, nil
}
