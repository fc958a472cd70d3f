package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ingestengine/internal/contentanalyzer"
	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

// SiteCredential is a username/password pair for one auth-gated site.
type SiteCredential struct {
	Username string
	Password string
	LoginURL string
}

// SessionStore persists per-site cookie jars across worker processes.
// Grounded on the teacher's use of Redis as a shared cache: session cache
// here is the serialized cookie set for one site, keyed by hostname, with
// a TTL.
type SessionStore interface {
	Load(ctx context.Context, site string) (*sessionBlob, error)
	Save(ctx context.Context, site string, blob *sessionBlob, ttl time.Duration) error
}

type sessionBlob struct {
	SavedAt time.Time       `json:"saved_at"`
	Cookies []*http.Cookie  `json:"cookies"`
}

// RedisSessionStore implements SessionStore over go-redis.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "authfetch:session:"}
}

func (r *RedisSessionStore) Load(ctx context.Context, site string) (*sessionBlob, error) {
	data, err := r.client.Get(ctx, r.prefix+site).Bytes()
	if err != nil {
		return nil, err
	}
	var blob sessionBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, site string, blob *sessionBlob, ttl time.Duration) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+site, data, ttl).Err()
}

// siteSession is the per-site critical section: it serializes session
// acquisition, login, and the inter-request pacing delay for one
// hostname, so traffic to one auth-gated site never blocks another.
type siteSession struct {
	mu       sync.Mutex
	lastCall time.Time
}

// AuthenticatedFetch logs into a configured set of paywalled sites using a
// persisted cookie jar, falling back to a credential login when the jar is
// stale, absent, or no longer yields subscriber content. Each site's
// session and its 3-17s randomized inter-request delay are guarded by a
// mutex keyed to that site, not a single process-global gate.
type AuthenticatedFetch struct {
	credentials map[string]SiteCredential // keyed by hostname
	store       SessionStore
	sessionTTL  time.Duration
	timeout     time.Duration
	maxBytes    int64
	analyzer    contentanalyzer.Config

	sitesMu sync.Mutex
	sites   map[string]*siteSession
}

func NewAuthenticatedFetch(credentials map[string]SiteCredential, store SessionStore, sessionTTL, timeout time.Duration, maxBytes int64, analyzer contentanalyzer.Config) *AuthenticatedFetch {
	return &AuthenticatedFetch{
		credentials: credentials,
		store:       store,
		sessionTTL:  sessionTTL,
		timeout:     timeout,
		maxBytes:    maxBytes,
		analyzer:    analyzer,
		sites:       make(map[string]*siteSession),
	}
}

// siteFor returns the siteSession for host, creating it on first use.
func (a *AuthenticatedFetch) siteFor(host string) *siteSession {
	a.sitesMu.Lock()
	defer a.sitesMu.Unlock()
	s, ok := a.sites[host]
	if !ok {
		s = &siteSession{}
		a.sites[host] = s
	}
	return s
}

func (a *AuthenticatedFetch) Meta() entity.StrategyMeta {
	domains := make([]string, 0, len(a.credentials))
	for host := range a.credentials {
		domains = append(domains, host)
	}
	return entity.StrategyMeta{
		Name:             "authenticated",
		Priority:         entity.PriorityLow,
		Capabilities:     map[entity.Capability]bool{entity.CapabilityAuth: true},
		BaseSuccessRate:  0.6,
		AvgResponseTime:  5,
		RequiresAuth:     true,
		SupportedDomains: domains,
		RateLimitDelaySec: 10,
	}
}

func (a *AuthenticatedFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(a.Meta(), rawURL)
}

func (a *AuthenticatedFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	u, err := url.Parse(rawURL)
	if err != nil {
		return entity.Failure(rawURL, "authenticated", err)
	}
	host := u.Hostname()
	cred, ok := a.credentials[host]
	if !ok {
		return entity.Failure(rawURL, "authenticated", fmt.Errorf("no credentials configured for host %s", host))
	}
	site := a.siteFor(host)

	site.mu.Lock()
	defer site.mu.Unlock()

	a.politeWait(ctx, site)

	client := httpclient.NewSafeClient(httpclient.Options{Timeout: a.timeout, MaxRedirects: 10, DenyPrivateIPs: true})

	jar, fromCache, err := a.session(ctx, host, cred)
	if err != nil {
		return entity.Failure(rawURL, "authenticated", err)
	}
	client.Jar = jar

	body, finalURL, status, err := httpclient.Get(ctx, client, a.timeout, rawURL, defaultDesktopUA, a.maxBytes)
	if err != nil {
		return entity.Failure(rawURL, "authenticated", err)
	}

	if fromCache && (status < 200 || status >= 300 || a.analyzer.Analyze(body).IsLikelyPaywall) {
		if err := a.login(ctx, jar, host, cred); err != nil {
			return entity.Failure(rawURL, "authenticated", fmt.Errorf("cached session stale and re-login failed for %s: %w", host, err))
		}
		a.saveSession(ctx, host, jar)

		client.Jar = jar
		body, finalURL, status, err = httpclient.Get(ctx, client, a.timeout, rawURL, defaultDesktopUA, a.maxBytes)
		if err != nil {
			return entity.Failure(rawURL, "authenticated", err)
		}
	}
	if status < 200 || status >= 300 {
		return entity.Failure(rawURL, "authenticated", fmt.Errorf("http status %d", status))
	}

	content, title, _, err := extractReadable(body, finalURL)
	if err != nil {
		return entity.Failure(rawURL, "authenticated", err)
	}
	return entity.Ok(rawURL, "authenticated", title, content)
}

// politeWait enforces the 3-17s randomized delay between requests of this
// strategy against the given site, paced independently per site. Callers
// must already hold site.mu.
func (a *AuthenticatedFetch) politeWait(ctx context.Context, site *siteSession) {
	wait := time.Duration(0)
	if !site.lastCall.IsZero() {
		minDelay := 3 * time.Second
		elapsed := time.Since(site.lastCall)
		target := minDelay + randomDelay(0, 14*time.Second)
		if elapsed < target {
			wait = target - elapsed
		}
	}
	site.lastCall = time.Now().Add(wait)

	if wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
}

// session loads a persisted cookie jar younger than sessionTTL, or performs
// a fresh credential login and persists the result. A cache hit is
// reported via fromCache so the caller can verify the session still
// yields subscriber content before trusting it, rather than relying on
// age alone. Callers must already hold the site's mutex.
func (a *AuthenticatedFetch) session(ctx context.Context, host string, cred SiteCredential) (jar *cookiejar.Jar, fromCache bool, err error) {
	jar, _ = cookiejar.New(nil)

	if a.store != nil {
		if blob, loadErr := a.store.Load(ctx, host); loadErr == nil {
			if time.Since(blob.SavedAt) < a.sessionTTL {
				siteURL, _ := url.Parse("https://" + host)
				jar.SetCookies(siteURL, blob.Cookies)
				return jar, true, nil
			}
		}
	}

	if err := a.login(ctx, jar, host, cred); err != nil {
		return nil, false, fmt.Errorf("login failed for %s: %w", host, err)
	}
	a.saveSession(ctx, host, jar)
	return jar, false, nil
}

// saveSession persists jar's cookies for host, the one I/O the site's
// critical section performs purely to write, not read, state.
func (a *AuthenticatedFetch) saveSession(ctx context.Context, host string, jar *cookiejar.Jar) {
	if a.store == nil {
		return
	}
	siteURL, _ := url.Parse("https://" + host)
	blob := &sessionBlob{SavedAt: time.Now(), Cookies: jar.Cookies(siteURL)}
	_ = a.store.Save(ctx, host, blob, a.sessionTTL)
}

// login performs a credential POST against the site's login URL and
// populates jar with the resulting cookies.
func (a *AuthenticatedFetch) login(ctx context.Context, jar *cookiejar.Jar, host string, cred SiteCredential) error {
	loginURL := cred.LoginURL
	if loginURL == "" {
		loginURL = "https://" + host + "/login"
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	form := url.Values{"username": {cred.Username}, "password": {cred.Password}}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", defaultDesktopUA)

	client := &http.Client{Timeout: a.timeout, Jar: jar}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login http status %d", resp.StatusCode)
	}
	return nil
}
