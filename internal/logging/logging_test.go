// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ltxlabs/ltxscope/internal/config"
	"github.com/sirupsen/logrus"
)

func TestNew_JSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}

	log.WithField("fport", 11).Debug("frame decoded")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "frame decoded" || entry["fport"] != float64(11) || entry["level"] != "debug" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := NewWithWriter(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Warn line missing: %q", out)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, _, err := NewWithWriter(config.LogConfig{Level: "loud", Format: "text"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for bad level")
	}
	if _, _, err := NewWithWriter(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for bad format")
	}
}

func TestNew_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltxscope.log")
	var console bytes.Buffer
	log, closer, err := NewWithWriter(config.LogConfig{
		Level:      "info",
		Format:     "text",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &console)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Unexpected log file content %q", data)
	}
	if console.Len() != 0 {
		t.Errorf("File logging should not write to console, got %q", console.String())
	}
}
