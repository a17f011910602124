// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/ltxlabs/ltxscope/internal/metrics"
	"github.com/ltxlabs/ltxscope/internal/sink"
	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// frameEvent is the outcome of processing one uplink
type frameEvent struct {
	uplink    uplink.Uplink
	result    *ltx.DecodeResult
	decodeErr error
	anomalies []ltx.Anomaly
}

// publisher is the part of a sink the processor needs
type publisher interface {
	Publish(ctx context.Context, r sink.Record) error
	Close() error
}

// frameProcessor decodes uplinks and fans the results out to metrics and
// the Redis sink when they are enabled
type frameProcessor struct {
	decoder *ltx.Decoder
	metrics *metrics.Metrics
	sink    publisher
	log     *logrus.Logger
}

// newFrameProcessor starts the optional metrics endpoint and connects the
// optional Redis sink. The metrics server stops when ctx is cancelled.
func newFrameProcessor(ctx context.Context) (*frameProcessor, error) {
	fp := &frameProcessor{decoder: decoder, log: logger}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		fp.metrics = metrics.New(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg, logger); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	if cfg.Redis.Enabled {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s, err := sink.NewRedisSink(dialCtx, sink.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Channel:     cfg.Redis.Channel,
			Format:      cfg.Redis.Format,
			History:     cfg.Redis.History,
			DialTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		fp.sink = s
	}

	return fp, nil
}

// process decodes u, validates the result and forwards it
func (fp *frameProcessor) process(ctx context.Context, u uplink.Uplink) frameEvent {
	ev := frameEvent{uplink: u}
	ev.result, ev.decodeErr = fp.decoder.Decode(u.Payload, u.FPort)
	if ev.decodeErr == nil {
		ev.anomalies = ltx.ValidateResult(ev.result)
	}

	if fp.metrics != nil {
		fp.metrics.Observe(u.DevEUI, u.Received, ev.result, ev.decodeErr, ev.anomalies)
	}

	if ev.decodeErr != nil {
		fp.log.WithFields(logrus.Fields{
			"dev_eui": u.DevEUI,
			"fport":   u.FPort,
			"payload": ltx.FormatHex(u.Payload),
		}).WithError(ev.decodeErr).Debug("Frame rejected")
		return ev
	}

	if fp.sink != nil {
		err := fp.sink.Publish(ctx, sink.Record{
			DevEUI:   u.DevEUI,
			FPort:    u.FPort,
			Received: u.Received,
			Result:   ev.result,
		})
		if err != nil {
			fp.log.WithError(err).Warn("Publish failed")
			if fp.metrics != nil {
				fp.metrics.PublishErrors.Inc()
			}
		}
	}
	return ev
}

// downlinkSent counts a queued downlink
func (fp *frameProcessor) downlinkSent() {
	if fp.metrics != nil {
		fp.metrics.DownlinksSent.Inc()
	}
}

func (fp *frameProcessor) Close() error {
	if fp.sink != nil {
		return fp.sink.Close()
	}
	return nil
}
