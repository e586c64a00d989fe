// Package tlswarn provides a process-wide one-shot warning for insecure TLS usage.
package tlswarn

import (
	"sync"

	"github.com/ownding/headscale-console/internal/logging"
)

var once sync.Once

// LogInsecure emits a single warning the first time it is called, naming the
// endpoint that triggered it. Subsequent calls are no-ops so that repeated
// dials to the rpc endpoint do not spam the log.
func LogInsecure(endpoint string) {
	once.Do(func() {
		logging.WithComponent("tls").Warn("certificate and hostname verification is disabled; do not use in production",
			"endpoint", endpoint)
	})
}
