package whitelist

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Checker decides which upstream hosts the proxy routes may forward to
type Checker struct {
	hosts  []string
	logger *zap.Logger
}

// NewChecker creates a new upstream host checker. An entry matches the host
// itself and any subdomain of it.
func NewChecker(hosts []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			normalized = append(normalized, h)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized upstream allow-list", zap.Strings("hosts", normalized))
	}

	return &Checker{
		hosts:  normalized,
		logger: logger,
	}
}

// IsAllowed checks that rawURL is an http(s) URL whose host is on the list.
// An empty list allows nothing.
func (c *Checker) IsAllowed(rawURL string) bool {
	if len(c.hosts) == 0 {
		return false
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range c.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	if c.logger != nil {
		c.logger.Debug("Upstream host not allowed", zap.String("host", host))
	}
	return false
}

// Hosts returns the normalized allow-list
func (c *Checker) Hosts() []string {
	return append([]string(nil), c.hosts...)
}
