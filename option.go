package icpay

import (
	"time"

	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
	"github.com/neuroverse/icpay/payment"
	"github.com/neuroverse/icpay/recorder"
	"github.com/neuroverse/icpay/registry"
)

// Option configures an ICPay instance at construction. Options apply
// before any ledger is opened, so every per-token orchestrator and
// deployer sees the final collaborators.
type Option func(*ICPay)

// WithLogger replaces the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *ICPay) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *ICPay) {
		if r != nil {
			p.metrics = r
		}
	}
}

// WithTimeout bounds each payment confirmation.
func WithTimeout(t time.Duration) Option {
	return func(p *ICPay) {
		if t > 0 {
			p.timeout = t
		}
	}
}

// WithRecorder replaces the transaction audit store; production
// deployments use the SQL recorder here.
func WithRecorder(r recorder.Recorder) Option {
	return func(p *ICPay) {
		if r != nil {
			p.rec = r
		}
	}
}

// WithRegistry replaces the marketplace backend.
func WithRegistry(r registry.Registry) Option {
	return func(p *ICPay) {
		if r != nil {
			p.reg = r
		}
	}
}

// WithGuardStore replaces the single-flight guard backend; use the
// Redis store when running multiple instances.
func WithGuardStore(s payment.Store) Option {
	return func(p *ICPay) {
		if s != nil {
			p.guard = s
		}
	}
}
