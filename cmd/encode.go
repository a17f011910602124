// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var (
	encodePort   int
	encodeFormat string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <cmd>",
	Short: "Encode a downlink command",
	Long: `Encode an LTX text command for downlink. Commands are always sent on
port 10 and truncated to 51 characters; both conditions are reported as
warnings.

Example:
  ltxscope encode "p 300"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var fPort *int
		if cmd.Flags().Changed("fport") {
			fPort = &encodePort
		}
		return encodeCommand(os.Stdout, strings.Join(args, " "), fPort, encodeFormat)
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().IntVar(&encodePort, "fport", ltx.CommandPort, "Requested downlink port")
	encodeCmd.Flags().StringVar(&encodeFormat, "format", "text", "Output format (text, json)")
}

// encodeCommand encodes text and writes the downlink to w
func encodeCommand(w io.Writer, text string, fPort *int, format string) error {
	d, err := ltx.EncodeDownlink(ltx.DownlinkInput{
		Data:  map[string]interface{}{"cmd": text},
		FPort: fPort,
	})

	switch format {
	case "text":
		if err != nil {
			return err
		}
		fmt.Fprint(w, ltx.FormatDownlink(d))
		return nil

	case "json":
		data, jsonErr := ltx.DownlinkJSON(d, err)
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Fprintln(w, string(data))
		return err

	default:
		return fmt.Errorf("unknown format %q (use text or json)", format)
	}
}
