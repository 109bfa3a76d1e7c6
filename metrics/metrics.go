// Package metrics defines the instrumentation surface for the payment
// pipeline. Counters track transfer and payout outcomes per token;
// latency histograms cover the ledger and registry calls.
package metrics

import "time"

// Recorder receives pipeline events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
