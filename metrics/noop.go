package metrics

import "time"

// NoopRecorder drops every event. It is the default for embedded use;
// daemons swap in the prometheus recorder.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
