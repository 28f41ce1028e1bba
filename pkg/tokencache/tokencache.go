// Package tokencache caches AAD access tokens per (identity, resource) key
// so that pod restarts and SDK retry storms do not hammer the upstream
// token endpoints. Entries expire at 80% of the token lifetime, concurrent
// exchanges for the same key are deduplicated.
package tokencache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/telekom/pod-identity-operator/pkg/aadclient"
)

// MaxDuration is the longest a token will be served from the cache,
// regardless of its own lifetime.
const MaxDuration = time.Hour

// ExchangeFunc fetches a fresh token on a cache miss.
type ExchangeFunc func(ctx context.Context) (*aadclient.Token, error)

// Cache is an interface for caching tokens.
type Cache interface {
	// GetOrExchange returns the cached token for key if present and not
	// expired. Otherwise it calls fn to exchange a new token and stores it.
	// Exchange errors are returned to the caller and never cached.
	GetOrExchange(ctx context.Context, key string, fn ExchangeFunc) (*aadclient.Token, error)

	// WithObserver returns a handle on the cache with the given observer.
	WithObserver(observer Observer) Cache
}

// Observer is an interface for observing cache events.
type Observer interface {
	// OnCacheHit is called when a non-expired token is served from the cache.
	OnCacheHit()
	// OnCacheMiss is called when no usable token is cached,
	// which may be due to the token being expired.
	OnCacheMiss()
	// OnTokenIssued is called when an exchange succeeds and the
	// token is added to the cache.
	OnTokenIssued(latency time.Duration)
	// OnTokenEvicted is called when a token is evicted from the
	// cache to make room for a new token.
	OnTokenEvicted()
	// OnTokenExpired is called when an expired token is removed
	// from the cache.
	OnTokenExpired()
	// OnFailedExchange is called when an exchange fails.
	OnFailedExchange(latency time.Duration)
	// OnDuplicateRequest is called when an exchange is deduplicated
	// onto an in-flight request for the same key.
	OnDuplicateRequest()
}

// Option is a function that sets some option on the cache.
type Option func(*options)

// WithMaxDuration caps how long tokens are served from the cache.
func WithMaxDuration(d time.Duration) Option {
	return func(o *options) {
		o.maxDuration = d
	}
}

type options struct {
	maxDuration time.Duration
}

type cache struct {
	maxSize      int
	maxDuration  time.Duration
	entries      map[string]*entry
	head         *entry
	tail         *entry
	mu           *sync.Mutex
	singleFlight *singleflight.Group

	observer Observer
}

type entry struct {
	key   string
	token *aadclient.Token
	mono  time.Time
	unix  time.Time

	next *entry
	prev *entry
}

// New creates a token cache implemented as an LRU of maxSize entries.
func New(maxSize int, opts ...Option) Cache {
	o := options{maxDuration: MaxDuration}
	for _, opt := range opts {
		opt(&o)
	}

	head := &entry{}
	tail := &entry{}
	head.next = tail
	tail.prev = head

	return &cache{
		maxSize:      maxSize,
		maxDuration:  min(o.maxDuration, MaxDuration),
		entries:      make(map[string]*entry, maxSize),
		head:         head,
		tail:         tail,
		mu:           &sync.Mutex{},
		singleFlight: &singleflight.Group{},
	}
}

func (c *cache) GetOrExchange(ctx context.Context, key string, fn ExchangeFunc) (token *aadclient.Token, err error) {

	var hit, evicted, issued, expired, called bool
	var latency time.Duration

	defer func() {
		if c.observer == nil {
			return
		}

		if hit {
			c.observer.OnCacheHit()
		} else {
			c.observer.OnCacheMiss()
			if !called {
				c.observer.OnDuplicateRequest()
			}
		}
		if issued && called {
			c.observer.OnTokenIssued(latency)
		}
		if evicted {
			c.observer.OnTokenEvicted()
		} else if expired {
			c.observer.OnTokenExpired()
		}
		if err != nil && called {
			c.observer.OnFailedExchange(latency)
		}
	}()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.remove(e)
		if !e.expired() {
			_ = c.add(e)
			c.mu.Unlock()
			hit = true
			return e.token, nil
		}
		expired = true
	}
	c.mu.Unlock()

	var v any
	t := time.Now()
	v, err, _ = c.singleFlight.Do(key, func() (any, error) {
		called = true
		return fn(ctx)
	})
	latency = time.Since(t)
	if err != nil {
		return nil, err
	}
	issued = true

	c.mu.Lock()
	defer c.mu.Unlock()

	token = v.(*aadclient.Token)
	if _, ok := c.entries[key]; !ok {
		evicted = c.add(c.newEntry(key, token))
	}

	return
}

func (c *cache) WithObserver(observer Observer) Cache {
	co := *c
	co.observer = observer
	return &co
}

func (c *cache) add(e *entry) bool {
	var evicted bool

	if len(c.entries) >= c.maxSize {
		c.remove(c.tail.prev)
		evicted = true
	}

	c.entries[e.key] = e
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e

	return evicted
}

func (c *cache) remove(e *entry) {
	delete(c.entries, e.key)
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
}

func (c *cache) newEntry(key string, token *aadclient.Token) *entry {
	// Kubelet rotates serviceaccount tokens at 80% of their lifetime,
	// the same margin keeps us from ever serving a token close to expiry.
	d := min((token.GetDuration()*8)/10, c.maxDuration)

	mono := time.Now().Add(d)
	unix := time.Unix(mono.Unix(), 0)

	return &entry{
		key:   key,
		token: token,
		mono:  mono,
		unix:  unix,
	}
}

func (e *entry) expired() bool {
	now := time.Now()
	mono := !e.mono.After(now)
	unix := !e.unix.After(now)
	return mono || unix
}

// KeyFromParts builds a cache key from parts.
func KeyFromParts(parts ...string) string {
	slices.Sort(parts) // Make it stable for tests.
	s := strings.Join(parts, ",")
	hash := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", hash)
}
