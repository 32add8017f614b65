// Package metrics exposes Prometheus counters for enforcement actions.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// Metrics holds all enforcement metrics.
type Metrics struct {
	ShortcutsSwallowed     *prometheus.CounterVec
	TerminationsVetoed     *prometheus.CounterVec
	ApplicationsTerminated *prometheus.CounterVec
	Notifications          *prometheus.CounterVec
	UpdateRuns             *prometheus.CounterVec
	Verdict                *prometheus.GaugeVec
}

var verdicts = []domain.Verdict{
	domain.VerdictCompliant,
	domain.VerdictWarningWindow,
	domain.VerdictPastDue,
	domain.VerdictPastDueMajorUpgrade,
	domain.VerdictConfigurationError,
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ShortcutsSwallowed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updateguard_shortcuts_swallowed_total",
				Help: "Banned shortcut key-down events swallowed by the key filter",
			},
			[]string{"key"},
		),
		TerminationsVetoed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updateguard_terminations_vetoed_total",
				Help: "Termination attempts refused because exit was not sanctioned",
			},
			[]string{"source"},
		),
		ApplicationsTerminated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updateguard_applications_terminated_total",
				Help: "Denylisted applications force-terminated after launch",
			},
			[]string{"bundle_id"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updateguard_notifications_total",
				Help: "Blocked-application notifications by outcome",
			},
			[]string{"outcome"},
		),
		UpdateRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updateguard_update_runs_total",
				Help: "Software update invocations by mode",
			},
			[]string{"mode"},
		),
		Verdict: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "updateguard_verdict",
				Help: "1 for the current compliance verdict, 0 otherwise",
			},
			[]string{"verdict"},
		),
	}

	reg.MustRegister(
		m.ShortcutsSwallowed,
		m.TerminationsVetoed,
		m.ApplicationsTerminated,
		m.Notifications,
		m.UpdateRuns,
		m.Verdict,
	)
	return m
}

// NewUnregistered creates metrics backed by a private registry (for tests and
// for runs without a metrics listener).
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// SetVerdict flips the verdict gauge to v.
func (m *Metrics) SetVerdict(v domain.Verdict) {
	for _, candidate := range verdicts {
		value := 0.0
		if candidate == v {
			value = 1
		}
		m.Verdict.WithLabelValues(string(candidate)).Set(value)
	}
}

// Serve exposes gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
