// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes decoder activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics contains all Prometheus metrics for ltxscope
type Metrics struct {
	// Frame metrics
	FramesReceived prometheus.Counter
	FramesDecoded  prometheus.Counter
	DecodeErrors   *prometheus.CounterVec

	// Reading metrics
	Readings      *prometheus.CounterVec
	SensorErrors  *prometheus.CounterVec
	Anomalies     *prometheus.CounterVec
	LastValue     *prometheus.GaugeVec
	LastFrameTime prometheus.Gauge
	DownlinksSent prometheus.Counter
	PublishErrors prometheus.Counter
}

// New creates all metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "ltx_frames_received_total",
			Help: "Total number of uplink frames received",
		}),
		FramesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "ltx_frames_decoded_total",
			Help: "Total number of uplink frames decoded without format errors",
		}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ltx_decode_errors_total",
			Help: "Total number of frames rejected, by format error",
		}, []string{"code"}),
		Readings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ltx_readings_total",
			Help: "Total number of channel readings decoded, by precision",
		}, []string{"precision"}),
		SensorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ltx_sensor_errors_total",
			Help: "Total number of readings carrying an error code, by code",
		}, []string{"code"}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ltx_anomalies_total",
			Help: "Total number of validation anomalies, by type",
		}, []string{"type"}),
		LastValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ltx_channel_value",
			Help: "Last decoded value per device channel",
		}, []string{"device", "channel", "unit"}),
		LastFrameTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "ltx_last_frame_timestamp_seconds",
			Help: "Unix time of the last received frame",
		}),
		DownlinksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "ltx_downlinks_sent_total",
			Help: "Total number of downlink commands written",
		}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ltx_publish_errors_total",
			Help: "Total number of failed sink publishes",
		}),
	}
}

// Observe records one decode outcome
func (m *Metrics) Observe(device string, received time.Time, res *ltx.DecodeResult, decodeErr error, anomalies []ltx.Anomaly) {
	m.FramesReceived.Inc()
	m.LastFrameTime.Set(float64(received.UnixNano()) / 1e9)

	if decodeErr != nil {
		code := "other"
		var fe *ltx.FormatError
		if errors.As(decodeErr, &fe) {
			code = fe.Code.String()
		}
		m.DecodeErrors.WithLabelValues(code).Inc()
		return
	}

	m.FramesDecoded.Inc()
	if device == "" {
		device = "unknown"
	}
	for _, r := range res.Channels {
		m.Readings.WithLabelValues(r.Precision().String()).Inc()
		if code, isErr := r.Err(); isErr {
			m.SensorErrors.WithLabelValues(code.String()).Inc()
			continue
		}
		v, _ := r.Value()
		m.LastValue.WithLabelValues(device, strconv.Itoa(r.Channel()), r.Unit()).Set(v)
	}
	for _, a := range anomalies {
		m.Anomalies.WithLabelValues(a.Type.String()).Inc()
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
