// Package metrics exports service telemetry to Prometheus. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirinyoku/fairtix/internal/domain"
)

const namespace = "fairtix"

type Recorder struct {
	httpDuration  *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	rejections    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Committed operations by notification type.",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected operations by error kind and code.",
		}, []string{"kind", "code"}),
	}

	var err error
	if r.httpDuration, err = register(reg, r.httpDuration); err != nil {
		return nil, err
	}
	if r.notifications, err = register(reg, r.notifications); err != nil {
		return nil, err
	}
	if r.rejections, err = register(reg, r.rejections); err != nil {
		return nil, err
	}

	return r, nil
}

// register adopts the collector already registered under the same
// descriptor, so building a second Recorder on one registry is harmless.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("metrics.register:%w", err)
	}
	return c, nil
}

func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Publish counts n. It lets the recorder sit in a notify.Fanout.
func (r *Recorder) Publish(_ context.Context, n domain.Notification) error {
	if r == nil {
		return nil
	}
	r.notifications.WithLabelValues(string(n.Type)).Inc()
	return nil
}

func (r *Recorder) Rejected(err error) {
	if r == nil || err == nil {
		return
	}
	r.rejections.WithLabelValues(domain.KindOf(err).String(), domain.CodeOf(err)).Inc()
}
