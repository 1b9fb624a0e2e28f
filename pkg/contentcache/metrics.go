package contentcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// cacheOperationsTotal mirrors the teacher's
// hardlinkingContentAddressableStorageOperationsTotal convention
// (pkg/cas/hardlinking_content_addressable_storage.go): a package-level
// CounterVec labeled by result, registered once in init(), with the two
// label values pre-bound so call sites just call .Inc().
var (
	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casprojfs",
			Subsystem: "content_cache",
			Name:      "operations_total",
			Help:      "Total number of content cache lookups, by result.",
		},
		[]string{"result"})
	cacheOperationsTotalHit  = cacheOperationsTotal.WithLabelValues("Hit")
	cacheOperationsTotalMiss = cacheOperationsTotal.WithLabelValues("Miss")
)

func init() {
	prometheus.MustRegister(cacheOperationsTotal)
}
