package bridge

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/session"
)

// Metrics holds the Prometheus collectors for hosted sessions.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	SessionsActive    prometheus.Gauge
	SessionsTotal     *prometheus.CounterVec
	SessionDuration   *prometheus.HistogramVec
	LinesTotal        *prometheus.CounterVec
	NoticesTotal      *prometheus.CounterVec
	SpeechRequests    *prometheus.CounterVec
	SpeechDuration    *prometheus.HistogramVec
	AudioBytesTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers every collector on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lingo"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open websocket connections",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Practice sessions in progress",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished practice sessions by outcome",
		}, []string{"outcome"}),
		SessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Practice session duration in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
		LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Finished script lines by turn and status",
		}, []string{"turn", "status"}),
		NoticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "Recoverable session failures by kind",
		}, []string{"kind"}),
		SpeechRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Synthesis and transcription calls",
		}, []string{"provider", "op", "status"}),
		SpeechDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_duration_seconds",
			Help:      "Synthesis and transcription latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "op"}),
		AudioBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio bytes exchanged with clients",
		}, []string{"direction"}),
	}
	m.registry.MustRegister(
		m.ConnectionsActive,
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionDuration,
		m.LinesTotal,
		m.NoticesTotal,
		m.SpeechRequests,
		m.SpeechDuration,
		m.AudioBytesTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSpeech implements speech.Observer.
func (m *Metrics) ObserveSpeech(provider, op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SpeechRequests.WithLabelValues(provider, op, status).Inc()
	m.SpeechDuration.WithLabelValues(provider, op).Observe(d.Seconds())
}

// RecordAudio counts bytes sent ("out") or received ("in").
func (m *Metrics) RecordAudio(direction string, n int) {
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// sessionTracker turns a stream of engine events for one connection into
// counter updates, counting each session and each line once.
type sessionTracker struct {
	m *Metrics

	id       string
	started  time.Time
	finished map[string]bool
}

func newSessionTracker(m *Metrics) *sessionTracker {
	return &sessionTracker{m: m}
}

func (t *sessionTracker) observe(ev session.Event) {
	if t.m == nil {
		return
	}
	snap := ev.Snapshot

	switch ev.Kind {
	case session.EventNotice:
		t.m.NoticesTotal.WithLabelValues(string(ev.Notice.Kind)).Inc()
	case session.EventLineUpdated:
		if line, ok := snap.Current(); ok && line.Status.Terminal() && t.id == snap.ID && !t.finished[line.ID] {
			t.finished[line.ID] = true
			t.m.LinesTotal.WithLabelValues(turnLabel(line), string(line.Status)).Inc()
		}
	case session.EventStateChanged:
		switch {
		case snap.State == session.StateGenerating && snap.ID != t.id:
			t.end("abandoned")
			t.id = snap.ID
			t.started = time.Now()
			t.finished = make(map[string]bool)
			t.m.SessionsActive.Inc()
		case snap.State == session.StateCompleted, snap.State == session.StateFailed:
			t.end(string(snap.State))
		case snap.State == session.StateIdle:
			t.end("abandoned")
		}
	}
}

// end closes the tracked session, if any.
func (t *sessionTracker) end(outcome string) {
	if t.m == nil || t.id == "" {
		return
	}
	t.m.SessionsActive.Dec()
	t.m.SessionsTotal.WithLabelValues(outcome).Inc()
	t.m.SessionDuration.WithLabelValues(outcome).Observe(time.Since(t.started).Seconds())
	t.id = ""
}

func turnLabel(l script.Line) string {
	if l.IsUserTurn {
		return "user"
	}
	return "ai"
}
