package fetcher

import (
	"math/rand"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// browserAgents is rotated for scrape sessions.
var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
}

var (
	agentMu  sync.Mutex
	agentRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randomAgent() string {
	agentMu.Lock()
	defer agentMu.Unlock()
	return browserAgents[agentRnd.Intn(len(browserAgents))]
}

// newSession returns a resty client with the per-request timeout applied.
// Retries stay disabled; the refresh schedule is the retry policy.
func newSession(timeout time.Duration, userAgent string) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	return c
}

// newBrowserSession keeps cookies between the token page and the search so
// anti-forgery tokens bound to a session cookie validate.
func newBrowserSession(timeout time.Duration) *resty.Client {
	c := newSession(timeout, randomAgent())
	if jar, err := cookiejar.New(nil); err == nil {
		c.SetCookieJar(jar)
	}
	c.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "cs-CZ,cs;q=0.9,en;q=0.8",
	})
	return c
}
