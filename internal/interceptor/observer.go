package interceptor

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/telekom/pod-identity-operator/pkg/metrics"
	"github.com/telekom/pod-identity-operator/pkg/tokencache"
)

// NewCacheObserver returns the observer wiring token cache events into the
// operator's metrics. Attach with Cache.WithObserver.
func NewCacheObserver(log logr.Logger) tokencache.Observer {
	return &cacheObserver{log: log}
}

type cacheObserver struct {
	log logr.Logger
}

func (o *cacheObserver) OnCacheHit() {
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheHit).Inc()
}

func (o *cacheObserver) OnCacheMiss() {
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheMiss).Inc()
}

func (o *cacheObserver) OnTokenIssued(latency time.Duration) {
	o.log.V(1).Info("token added to cache", "latency", latency)
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheIssued).Inc()
}

func (o *cacheObserver) OnTokenEvicted() {
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheEvicted).Inc()
}

func (o *cacheObserver) OnTokenExpired() {
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheExpired).Inc()
}

func (o *cacheObserver) OnFailedExchange(latency time.Duration) {
	o.log.V(1).Info("token exchange failed", "latency", latency)
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheFailed).Inc()
}

func (o *cacheObserver) OnDuplicateRequest() {
	metrics.TokenCacheEvents.WithLabelValues(metrics.CacheDuplicate).Inc()
}
