// Package metrics defines a Prometheus-shaped instrumentation interface for
// wsrouter. The default Recorder is a no-op; a host application wires in a
// real Prometheus (or any other) registry by implementing Recorder itself.
package metrics

import "time"

// Recorder receives counter/gauge/histogram observations. The router records
// only from the dispatch pipeline; the RPC manager and the pub/sub layer
// record nothing, and no router code calls SetGauge. Label values are passed
// positionally in the order documented on each method; implementations that
// bridge to Prometheus client_golang should build a *prometheus.CounterVec
// etc. keyed on those same label names.
type Recorder interface {
	// IncCounter increments a named counter by one, e.g.
	// "dispatch_messages_total" with labels [type].
	IncCounter(name string, labels ...string)

	// ObserveHistogram records a duration observation, e.g.
	// "dispatch_duration_seconds", which the router records with no labels.
	ObserveHistogram(name string, d time.Duration, labels ...string)

	// SetGauge sets a named gauge to a value, e.g. "rpc_inflight" with
	// labels [connection_id].
	SetGauge(name string, value float64, labels ...string)
}

// Noop discards every observation. It is the default Recorder until a host
// application supplies its own via Config.Metrics.
type Noop struct{}

func (Noop) IncCounter(name string, labels ...string)                        {}
func (Noop) ObserveHistogram(name string, d time.Duration, labels ...string) {}
func (Noop) SetGauge(name string, value float64, labels ...string)           {}

var _ Recorder = Noop{}

// Timer measures elapsed time and reports it as a histogram observation on
// Stop. Handlers and dispatch steps use it to avoid repeating
// time.Since(start) boilerplate at every call site.
type Timer struct {
	recorder Recorder
	name     string
	labels   []string
	start    time.Time
}

// StartTimer begins timing an operation against the given Recorder.
func StartTimer(r Recorder, name string, labels ...string) *Timer {
	return &Timer{recorder: r, name: name, labels: labels, start: time.Now()}
}

// Stop records the elapsed duration as a histogram observation.
func (t *Timer) Stop() {
	t.recorder.ObserveHistogram(t.name, time.Since(t.start), t.labels...)
}
