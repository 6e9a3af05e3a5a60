// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics instruments the Orchestrator's five public operations
// with Prometheus counters and histograms.
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu  sync.RWMutex
	reg *prometheus.Registry

	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
)

// Operation names, one per Orchestrator public method.
const (
	OpDetect         = "detect"
	OpPrepare        = "prepare"
	OpConstructMedia = "construct_media"
	OpReconfigureVM  = "reconfigure_vm"
	OpDone           = "done"
)

func init() {
	resetLocked()
}

// Reset clears and reinitializes all metrics collectors.
// Primarily used by tests to ensure clean state.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resetLocked()
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
func Handler() http.Handler {
	mu.RLock()
	registry := reg
	mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveOperation records a completed Orchestrator operation attempt.
// outcome should be "ok" or an error-kind string (see unattendutil.Kind);
// callers pass the empty string on success.
func ObserveOperation(op, outcome string, duration time.Duration) {
	labelOp := sanitizeLabel(op, "unknown")
	labelOutcome := outcome
	if labelOutcome == "" {
		labelOutcome = "ok"
	}
	labelOutcome = sanitizeLabel(labelOutcome, "unknown")

	mu.RLock()
	defer mu.RUnlock()
	if opTotal != nil {
		opTotal.WithLabelValues(labelOp, labelOutcome).Inc()
	}
	if opDuration != nil {
		opDuration.WithLabelValues(labelOp).Observe(durationSeconds(duration))
	}
}

// Observe runs fn, timing it and recording the result under op. The outcome
// label is "ok" unless fn returns an error, in which case it is
// outcomeFromErr(err).
func Observe(op string, fn func() error, outcomeFromErr func(error) string) error {
	start := time.Now()
	err := fn()
	outcome := "ok"
	if err != nil && outcomeFromErr != nil {
		outcome = outcomeFromErr(err)
	} else if err != nil {
		outcome = "error"
	}
	ObserveOperation(op, outcome, time.Since(start))
	return err
}

func resetLocked() {
	registry := prometheus.NewRegistry()

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vboxunattend",
		Subsystem: "orchestrator",
		Name:      "operations_total",
		Help:      "Total Orchestrator operations grouped by operation name and outcome.",
	}, []string{"op", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vboxunattend",
		Subsystem: "orchestrator",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Orchestrator operations by operation name.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"op"})

	registry.MustRegister(total, duration)

	reg = registry
	opTotal = total
	opDuration = duration
}

func sanitizeLabel(v string, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func durationSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return d.Seconds()
}
