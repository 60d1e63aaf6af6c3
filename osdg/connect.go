package osdg

import (
	"fmt"
	"math"
	"net"
	"time"

	"github.com/albert-salai/opensdg-go/log"
	"github.com/albert-salai/opensdg-go/osdgconfig"
)

// retryConfig is degoutils/net/backoff.go's RetryConfig, carried over by
// value rather than imported: the rest of that package (net.go's
// "connect.go", same package, different file) pulls in a cgo binding to
// libzmq4 that this module has no use for, so only the small backoff
// struct is reproduced here (see DESIGN.md).
type retryConfig struct {
	maxTries           int
	initialDelayMs     int
	maxDelayMs         int
	maxDelayAfterTries int
	currentTry         int
}

func (rc *retryConfig) initDefaults() {
	if rc.initialDelayMs == 0 {
		rc.initialDelayMs = 5000
	}
	if rc.maxDelayMs == 0 {
		rc.maxDelayMs = 120000
	}
	if rc.maxDelayAfterTries == 0 {
		rc.maxDelayAfterTries = 10
	}
}

// stepDelayMs returns the next backoff delay and advances the try
// counter, or 0 once maxTries attempts have been made.
func (rc *retryConfig) stepDelayMs() int {
	rc.initDefaults()

	if rc.maxTries != 0 && rc.currentTry >= rc.maxTries {
		return 0
	}

	k := math.Log2(float64(rc.maxDelayMs)/float64(rc.initialDelayMs)) / float64(rc.maxDelayAfterTries)
	d := int(float64(rc.initialDelayMs) * math.Exp2(float64(rc.currentTry)*k))
	rc.currentTry++

	if d > rc.maxDelayMs {
		d = rc.maxDelayMs
	}
	return d
}

// dialEndpoints resolves connect_to_grid's endpoints[] argument (spec.md
// §4.4) against the network, returning one TCP connection. A single pass tries
// every endpoint in order and returns on the first success; failing
// passes wait with degoutils/net-style exponential backoff before trying
// the whole list again (the "Endpoint list retry" supplement, grounded
// on degoutils/net/connect.Connect's retry loop and
// degoutils/net/backoff.go's RetryConfig).
func dialEndpoints(endpoints []string) (net.Conn, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("osdg: no endpoints given")
	}

	rc := retryConfig{
		maxTries:       osdgconfig.DialRetries(),
		initialDelayMs: osdgconfig.DialRetryDelayMs(),
	}

	var lastErr error
	for {
		for _, ep := range endpoints {
			c, err := net.Dial("tcp", ep)
			if err == nil {
				return c, nil
			}
			log.Warning(fmt.Sprintf("osdg: dial %s failed: %v", ep, err))
			lastErr = err
		}

		delay := rc.stepDelayMs()
		if delay == 0 {
			return nil, fmt.Errorf("osdg: all endpoints failed, giving up: %w", lastErr)
		}
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
}
