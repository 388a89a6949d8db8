package prommetrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-payments/core"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLabels covers every tag emitted by the service and the webhook
// engine. Tags outside the label set are dropped.
var DefaultLabels = []string{"provider_id", "operation", "status", "error_kind", "stage", "event", "outcome"}

// DefaultBuckets suits millisecond durations from a few ms to ~40s.
var DefaultBuckets = prometheus.ExponentialBuckets(5, 2, 14)

const maxLabelLen = 64

type Options struct {
	Registerer prometheus.Registerer
	Labels     []string
	Buckets    []float64
}

// Recorder implements core.MetricsRecorder on Prometheus vectors that are
// created on first use. Dotted names become underscored metric names.
type Recorder struct {
	registerer prometheus.Registerer
	labels     []string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	errs       []error
}

var _ core.MetricsRecorder = (*Recorder)(nil)

func NewRecorder(opts Options) *Recorder {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if len(opts.Labels) == 0 {
		opts.Labels = DefaultLabels
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = DefaultBuckets
	}
	return &Recorder{
		registerer: opts.Registerer,
		labels:     append([]string(nil), opts.Labels...),
		buckets:    append([]float64(nil), opts.Buckets...),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(MetricName(name))
	if vec == nil {
		return
	}
	vec.With(r.labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(MetricName(name))
	if vec == nil {
		return
	}
	vec.With(r.labelValues(tags)).Observe(value)
}

// Errors returns registration failures seen so far.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "payments counter " + name,
	}, r.labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			r.errs = append(r.errs, err)
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			r.errs = append(r.errs, err)
			return nil
		}
		vec = existing
	}
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "payments histogram " + name,
		Buckets: r.buckets,
	}, r.labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			r.errs = append(r.errs, err)
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			r.errs = append(r.errs, err)
			return nil
		}
		vec = existing
	}
	r.histograms[name] = vec
	return vec
}

func (r *Recorder) labelValues(tags map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(r.labels))
	for _, label := range r.labels {
		out[label] = sanitizeLabel(tags[label])
	}
	return out
}

// MetricName turns "payments.create_checkout.total" into
// "payments_create_checkout_total". Characters Prometheus rejects become
// underscores.
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}
