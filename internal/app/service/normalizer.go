package service

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
)

// LivenessChecker reports whether host resolves.
type LivenessChecker interface {
	Alive(ctx context.Context, host string) bool
}

// StaticChecker answers every lookup with the same value.
type StaticChecker bool

func (s StaticChecker) Alive(context.Context, string) bool {
	return bool(s)
}

type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSChecker resolves hosts through DNS and caches positive answers.
type DNSChecker struct {
	resolver hostResolver
	timeout  time.Duration
	cache    *cache.Cache
	logger   *zap.Logger
}

func NewDNSChecker(timeout, cacheTTL time.Duration, logger *zap.Logger) *DNSChecker {
	return &DNSChecker{
		resolver: net.DefaultResolver,
		timeout:  timeout,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		logger:   logger,
	}
}

func (c *DNSChecker) Alive(ctx context.Context, host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	if _, ok := c.cache.Get(host); ok {
		return true
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addrs, err := c.resolver.LookupHost(lookupCtx, host)
	if err != nil || len(addrs) == 0 {
		c.logger.Debug("host did not resolve", zap.String("host", host), zap.Error(err))
		return false
	}

	c.cache.SetDefault(host, struct{}{})
	return true
}

// DestinationNormalizer turns raw user input into a resolvable absolute URL.
type DestinationNormalizer struct {
	checker LivenessChecker
}

func NewDestinationNormalizer(checker LivenessChecker) *DestinationNormalizer {
	return &DestinationNormalizer{checker: checker}
}

var knownSchemes = []string{"http://", "https://", "ftp://"}

// hostProfile maps hosts for lookup without the STD3 character rules, so
// hostnames such as my_host.example.com that resolve in practice pass.
var hostProfile = idna.New(idna.MapForLookup(), idna.BidiRule(), idna.StrictDomainName(false))

func hasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	for _, s := range knownSchemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}

// Normalize prefixes https:// when raw has no scheme and checks that the
// host resolves. The returned value is what gets stored and redirected to.
func (n *DestinationNormalizer) Normalize(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", internalerrors.New(internalerrors.KindInvalidDestination, "original URL is required")
	}

	if !hasScheme(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", internalerrors.ErrInvalidDestination
	}

	host, err := hostProfile.ToASCII(u.Hostname())
	if err != nil {
		return "", internalerrors.ErrInvalidDestination
	}

	if !n.checker.Alive(ctx, host) {
		return "", internalerrors.ErrInvalidDestination
	}

	return raw, nil
}
