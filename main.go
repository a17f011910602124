// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ltxscope - LTX Uplink Decoder and Monitor
//
// A CLI tool for decoding LTX sensor logger frames, encoding downlink
// commands and monitoring live uplink traffic.

package main

import (
	"os"

	"github.com/ltxlabs/ltxscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
