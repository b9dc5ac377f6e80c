package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// keySet resolves verification keys by kid from a remote JWKS document. The
// document is cached and refreshed in the background by jwk.Cache.
type keySet struct {
	url     string
	cache   *jwk.Cache
	timeout time.Duration
}

func newKeySet(url string, minRefresh, timeout time.Duration) (*keySet, error) {
	if minRefresh <= 0 {
		minRefresh = 15 * time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cache := jwk.NewCache(context.Background())
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
	if err := cache.Register(
		url,
		jwk.WithMinRefreshInterval(minRefresh),
		jwk.WithHTTPClient(client),
	); err != nil {
		return nil, fmt.Errorf("register jwks %q: %w", url, err)
	}

	return &keySet{url: url, cache: cache, timeout: timeout}, nil
}

func (s *keySet) lookup(kid string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	set, err := s.cache.Get(ctx, s.url)
	if err != nil {
		return nil, decodeError(ReasonKeyUnavailable, err)
	}

	var key jwk.Key
	if kid == "" {
		if set.Len() != 1 {
			return nil, decodeError(ReasonMissingKeyID, nil)
		}
		key, _ = set.Key(0)
	} else {
		var ok bool
		key, ok = set.LookupKeyID(kid)
		if !ok {
			return nil, decodeError(ReasonUnknownKeyID, nil)
		}
	}
	if key == nil {
		return nil, decodeError(ReasonKeyUnavailable, errors.New("empty key set"))
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, decodeError(ReasonKeyUnavailable, err)
	}
	return raw, nil
}
