// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates. It is not safe for
// concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	DecodeErrors     uint64
	EmptyFrames      uint64
	UnknownPorts     uint64
	TruncatedFrames  uint64
	Readings         uint64
	SensorErrors     uint64
	AnomalousFrames  uint64
	AnomalousValues  uint64
	LowBattery       uint64
	InvalidHK        uint64
	ChannelConflicts uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decode outcome and its anomalies
func (s *Statistics) Update(result *DecodeResult, decodeErr error, anomalies []Anomaly) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.DecodeErrors++
		var fe *FormatError
		if errors.As(decodeErr, &fe) {
			switch fe.Code {
			case ErrEmptyFrame:
				s.EmptyFrames++
			case ErrUnknownPort:
				s.UnknownPorts++
			case ErrTruncatedJump, ErrTruncatedValue, ErrTruncatedHK:
				s.TruncatedFrames++
			}
		}
		return
	}

	if result != nil {
		s.Readings += uint64(len(result.Channels))
	}

	if len(anomalies) == 0 {
		s.ValidFrames++
		return
	}

	s.AnomalousFrames++
	for _, a := range anomalies {
		switch a.Type {
		case AnomalySensorError:
			s.SensorErrors++
		case AnomalyLowBattery:
			s.LowBattery++
			s.AnomalousValues++
		case AnomalyInvalidTemp, AnomalyInvalidHumidity, AnomalyUnknownHK:
			s.InvalidHK++
			s.AnomalousValues++
		case AnomalyChannelRange, AnomalyDuplicateChannel:
			s.ChannelConflicts++
			s.AnomalousValues++
		}
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.DecodeErrors+s.AnomalousFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, decodeErrorPercent, anomalousPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		decodeErrorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
		anomalousPercent = float64(s.AnomalousFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("Readings:        %8d\n", s.Readings)

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodeErrorPercent)
		if s.TruncatedFrames > 0 {
			result += fmt.Sprintf("  Truncated:        %5d\n", s.TruncatedFrames)
		}
		if s.EmptyFrames > 0 {
			result += fmt.Sprintf("  Empty:            %5d\n", s.EmptyFrames)
		}
		if s.UnknownPorts > 0 {
			result += fmt.Sprintf("  Unknown fPort:    %5d\n", s.UnknownPorts)
		}
	}
	if s.AnomalousFrames > 0 {
		result += fmt.Sprintf("Anomalous Frames:%8d (%.1f%%)\n", s.AnomalousFrames, anomalousPercent)
		if s.SensorErrors > 0 {
			result += fmt.Sprintf("  Sensor Errors:    %5d\n", s.SensorErrors)
		}
		if s.LowBattery > 0 {
			result += fmt.Sprintf("  Low Battery:      %5d\n", s.LowBattery)
		}
		if s.InvalidHK > 0 {
			result += fmt.Sprintf("  Invalid HK:       %5d\n", s.InvalidHK)
		}
		if s.ChannelConflicts > 0 {
			result += fmt.Sprintf("  Channel Conflict: %5d\n", s.ChannelConflicts)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.2f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.2f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
