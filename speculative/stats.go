package speculative

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Counters holds a loop's aggregate iteration counts, merged from every
// worker thread's unsynchronized per-thread counters at teardown: each
// thread accumulates lock-free during the run, and the totals are merged
// once, at teardown.
type Counters struct {
	Iterations uint64
	Conflicts  uint64
	Pushes     uint64
}

// Commits returns the number of iterations that committed rather than
// aborted.
func (c Counters) Commits() uint64 { return c.Iterations - c.Conflicts }

// Stats is the pluggable statistics sink. Emit is called once per ForEach
// call, after every worker thread has exited, with the final merged totals.
// OnEach does not emit statistics.
type Stats interface {
	Emit(loopName string, c Counters)
}

// logStats is the default Stats: a single structured log line per loop
// rather than a dedicated metrics backend by default.
type logStats struct {
	logger zerolog.Logger
}

// NewLogStats returns a Stats that logs a summary line through logger.
func NewLogStats(logger zerolog.Logger) Stats {
	return &logStats{logger: logger}
}

func (s *logStats) Emit(loopName string, c Counters) {
	s.logger.Info().
		Str("loop", loopName).
		Uint64("iterations", c.Iterations).
		Uint64("commits", c.Commits()).
		Uint64("conflicts", c.Conflicts).
		Uint64("pushes", c.Pushes).
		Msg("for_each: stats")
}

// prometheusStats reports the same four aggregates as Prometheus counters,
// labeled by loop name and event kind.
type prometheusStats struct {
	events *prometheus.CounterVec
}

// NewPrometheusStats returns a Stats that registers a galois_foreach_events_total
// CounterVec against reg and adds to it on every Emit. Because Emit is called
// once per loop run with final totals rather than incrementally, a loop run
// twice under the same loopName simply accumulates across both runs, which is
// the expected behavior for a Prometheus counter.
func NewPrometheusStats(reg prometheus.Registerer) Stats {
	events := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "galois",
		Subsystem: "foreach",
		Name:      "events_total",
		Help:      "Count of for_each iteration outcomes, by loop and event kind.",
	}, []string{"loop", "event"})
	return &prometheusStats{events: events}
}

func (s *prometheusStats) Emit(loopName string, c Counters) {
	s.events.WithLabelValues(loopName, "iterations").Add(float64(c.Iterations))
	s.events.WithLabelValues(loopName, "commits").Add(float64(c.Commits()))
	s.events.WithLabelValues(loopName, "conflicts").Add(float64(c.Conflicts))
	s.events.WithLabelValues(loopName, "pushes").Add(float64(c.Pushes))
}

// multiStats fans Emit out to every underlying Stats, so a caller can combine
// e.g. a log sink and a Prometheus sink with a single WithStats option.
type multiStats struct {
	stats []Stats
}

// NewMultiStats combines several Stats sinks into one.
func NewMultiStats(stats ...Stats) Stats {
	return &multiStats{stats: stats}
}

func (m *multiStats) Emit(loopName string, c Counters) {
	for _, s := range m.stats {
		s.Emit(loopName, c)
	}
}
