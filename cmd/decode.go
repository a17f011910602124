// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var (
	decodePort   int
	decodeFormat string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode one uplink frame",
	Long: `Decode a single LTX uplink frame given as hex. Spaces inside the hex
string are ignored, so frames can be pasted as "13 01 41A4E148".

Output formats:
  text - human readable, with validation warnings
  json - the network-server decoder shape ({"flags","reason","chans"} or {"errors"})
  cbor - compact CBOR export, printed as hex`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeFrame(os.Stdout, strings.Join(args, ""), decodePort, decodeFormat)
	},
}

var decodeDownlinkPort int

var decodeDownlinkCmd = &cobra.Command{
	Use:   "decode_downlink <hex>",
	Short: "Decode downlink bytes back to command text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := uplink.DecodeHex(strings.Join(args, ""))
		if err != nil {
			return err
		}
		text, err := ltx.DecodeDownlink(payload, decodeDownlinkPort)
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().IntVar(&decodePort, "fport", 1, "LoRaWAN port the frame was received on")
	decodeCmd.Flags().StringVar(&decodeFormat, "format", "text", "Output format (text, json, cbor)")

	rootCmd.AddCommand(decodeDownlinkCmd)
	decodeDownlinkCmd.Flags().IntVar(&decodeDownlinkPort, "fport", ltx.CommandPort, "LoRaWAN port of the downlink")
}

// decodeFrame decodes hexPayload and writes it to w in the given format
func decodeFrame(w io.Writer, hexPayload string, port int, format string) error {
	payload, err := uplink.DecodeHex(hexPayload)
	if err != nil {
		return err
	}

	res, decodeErr := decoder.Decode(payload, port)

	switch format {
	case "text":
		if decodeErr != nil {
			return decodeErr
		}
		fmt.Fprint(w, ltx.FormatResult(time.Now(), res))
		for _, a := range ltx.ValidateResult(res) {
			fmt.Fprintf(w, "  warning: %s\n", a.Message)
		}
		return nil

	case "json":
		data, err := ltx.UplinkJSON(res, decodeErr)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return decodeErr

	case "cbor":
		if decodeErr != nil {
			return decodeErr
		}
		data, err := ltx.MarshalCBOR(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, strings.ToUpper(hex.EncodeToString(data)))
		return nil

	default:
		return fmt.Errorf("unknown format %q (use text, json or cbor)", format)
	}
}
