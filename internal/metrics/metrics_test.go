// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve_DecodedFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	frame := ltx.NewFrameBuilder(ltx.Header{Reason: ltx.ReasonAuto}).
		F16(ltx.V(45.5), ltx.E(ltx.ErrNoReply)).
		F32(ltx.V(18.5)).
		HK(map[int]ltx.FrameValue{0: ltx.V(2.5)}).
		MustBytes()
	res, err := ltx.DecodeUplink(frame, 11)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	received := time.Unix(1700000000, 0)
	m.Observe("70b3d57ed0001234", received, res, nil, ltx.ValidateResult(res))

	if got := testutil.ToFloat64(m.FramesReceived); got != 1 {
		t.Errorf("Expected 1 frame received, got %v", got)
	}
	if got := testutil.ToFloat64(m.FramesDecoded); got != 1 {
		t.Errorf("Expected 1 frame decoded, got %v", got)
	}
	if got := testutil.ToFloat64(m.Readings.WithLabelValues("F16")); got != 3 {
		t.Errorf("Expected 3 F16 readings, got %v", got)
	}
	if got := testutil.ToFloat64(m.Readings.WithLabelValues("F32")); got != 1 {
		t.Errorf("Expected 1 F32 reading, got %v", got)
	}
	if got := testutil.ToFloat64(m.SensorErrors.WithLabelValues("NoReply")); got != 1 {
		t.Errorf("Expected 1 NoReply, got %v", got)
	}
	if got := testutil.ToFloat64(m.Anomalies.WithLabelValues("low_battery")); got != 1 {
		t.Errorf("Expected 1 low battery anomaly, got %v", got)
	}
	if got := testutil.ToFloat64(m.Anomalies.WithLabelValues("sensor_error")); got != 1 {
		t.Errorf("Expected 1 sensor error anomaly, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastValue.WithLabelValues("70b3d57ed0001234", "0", "%rH")); got != 45.5 {
		t.Errorf("Expected channel 0 value 45.5, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastValue.WithLabelValues("70b3d57ed0001234", "90", "V(HK_Bat)")); got != 2.5 {
		t.Errorf("Expected battery 2.5, got %v", got)
	}
	// Error readings do not produce a value series
	if n := testutil.CollectAndCount(m.LastValue); n != 3 {
		t.Errorf("Expected 3 value series, got %d", n)
	}
	if got := testutil.ToFloat64(m.LastFrameTime); got != 1700000000 {
		t.Errorf("Unexpected last frame time %v", got)
	}
}

func TestObserve_DecodeErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	for _, tc := range []struct {
		payload []byte
		port    int
	}{
		{nil, 1},
		{[]byte{0x12, 0x01, 0x41}, 1},
		{[]byte{0x12, 0x01, 0x41}, 1},
		{[]byte{0x12}, 0},
	} {
		res, err := ltx.DecodeUplink(tc.payload, tc.port)
		m.Observe("", time.Now(), res, err, nil)
	}
	m.Observe("", time.Now(), nil, io.ErrUnexpectedEOF, nil)

	if got := testutil.ToFloat64(m.FramesReceived); got != 5 {
		t.Errorf("Expected 5 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.FramesDecoded); got != 0 {
		t.Errorf("Expected no decoded frames, got %v", got)
	}
	for code, want := range map[string]float64{
		"EmptyFrame":     1,
		"TruncatedValue": 2,
		"UnknownPort":    1,
		"other":          1,
	} {
		if got := testutil.ToFloat64(m.DecodeErrors.WithLabelValues(code)); got != want {
			t.Errorf("%s: expected %v, got %v", code, want, got)
		}
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DownlinksSent.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "ltx_downlinks_sent_total 1") {
		t.Errorf("Expected downlink counter in output:\n%s", body)
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	New(reg)
}
