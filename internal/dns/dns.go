// Package dns provides the best-effort reverse lookup used to enrich
// IP-to-MAC bindings with display hostnames.
package dns

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Resolver turns an IP address into a hostname. Implementations are
// best-effort: a failed lookup is an error, never a reason to retry.
type Resolver interface {
	ReverseLookup(ctx context.Context, ip string) (string, error)
}

// LookupFunc matches net.Resolver.LookupAddr.
type LookupFunc func(ctx context.Context, addr string) ([]string, error)

// CachingResolver caches reverse-lookup results, including failures, so
// repeated reconciliation cycles do not hammer the resolver for the same
// neighbors.
type CachingResolver struct {
	lookup  LookupFunc
	cache   *ttlcache.Cache[string, string]
	timeout time.Duration
}

// NewCachingResolver builds a resolver over net.DefaultResolver with the
// given positive/negative cache TTL and per-lookup timeout.
func NewCachingResolver(ttl, timeout time.Duration) *CachingResolver {
	return newCachingResolver(net.DefaultResolver.LookupAddr, ttl, timeout)
}

func newCachingResolver(lookup LookupFunc, ttl, timeout time.Duration) *CachingResolver {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &CachingResolver{lookup: lookup, cache: cache, timeout: timeout}
}

// ReverseLookup resolves ip to a hostname. Misses are cached as empty
// strings and reported as lookup errors on later calls too.
func (r *CachingResolver) ReverseLookup(ctx context.Context, ip string) (string, error) {
	if item := r.cache.Get(ip); item != nil {
		if item.Value() == "" {
			return "", &net.DNSError{Err: "cached miss", Name: ip, IsNotFound: true}
		}
		return item.Value(), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := r.lookup(lookupCtx, ip)
	if err != nil || len(names) == 0 {
		r.cache.Set(ip, "", ttlcache.DefaultTTL)
		if err == nil {
			err = &net.DNSError{Err: "no PTR record", Name: ip, IsNotFound: true}
		}
		return "", err
	}

	name := strings.TrimSuffix(names[0], ".")
	r.cache.Set(ip, name, ttlcache.DefaultTTL)
	return name, nil
}

// Stop halts the cache janitor.
func (r *CachingResolver) Stop() {
	r.cache.Stop()
}
