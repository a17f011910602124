// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var (
	simCount    int
	simInterval int
	simPort     int
	simSeed     int64
	simDevEUI   string
	simFaults   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate logger frames in serial bridge format",
	Long: `Generate plausible LTX logger frames and print them as serial bridge
lines ("<fport>,<hex>,<deveui>").

The output can be fed to a pseudo terminal to test raw_log and
error_detection without hardware, e.g.:

  socat -d pty,raw,echo=0,link=/tmp/ltx0 EXEC:"ltxscope simulate --interval 2"
  ltxscope error_detection --port /tmp/ltx0

With --faults, some frames carry sensor errors, a low battery, or are
truncated on the wire.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simCount, "count", 10, "Number of frames (0 = unlimited)")
	simulateCmd.Flags().IntVar(&simInterval, "interval", 0, "Seconds between frames")
	simulateCmd.Flags().IntVar(&simPort, "fport", 11, "Port (selects the sensor profile)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (0 = time based)")
	simulateCmd.Flags().StringVar(&simDevEUI, "dev-eui", "70b3d57ed0000001", "Device EUI to report")
	simulateCmd.Flags().BoolVar(&simFaults, "faults", false, "Inject faults")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.WithField("seed", seed).Debug("Simulator started")

	sim := newSimulator(rand.New(rand.NewSource(seed)), decoder.Revision(), simPort, simFaults)
	for i := 0; simCount == 0 || i < simCount; i++ {
		if i > 0 && simInterval > 0 {
			time.Sleep(time.Duration(simInterval) * time.Second)
		}
		if err := sim.writeLine(os.Stdout, simDevEUI); err != nil {
			return err
		}
	}
	return nil
}

// simulator produces frames the way a logger with one sensor would
type simulator struct {
	rng      *rand.Rand
	revision ltx.Revision
	port     int
	units    []string
	faults   bool
	energy   float64 // mAh, grows every frame
}

func newSimulator(rng *rand.Rand, revision ltx.Revision, port int, faults bool) *simulator {
	return &simulator{
		rng:      rng,
		revision: revision,
		port:     port,
		units:    ltx.DefaultProfiles().Units(port),
		faults:   faults,
	}
}

// value returns a plausible reading for unit
func (s *simulator) value(unit string) float64 {
	switch unit {
	case "°C":
		return 15 + s.rng.Float64()*10
	case "%rH":
		return 30 + s.rng.Float64()*40
	case "Bar":
		return 1 + s.rng.Float64()
	case "m":
		return s.rng.Float64() * 5
	case "dBm":
		return -110 + s.rng.Float64()*50
	case "uS/cm":
		return 100 + s.rng.Float64()*900
	default:
		return s.rng.Float64() * 100
	}
}

// frame builds the next frame
func (s *simulator) frame() []byte {
	h := ltx.Header{Measure: true, Reason: ltx.ReasonAuto}
	battery := 3.0 + s.rng.Float64()*0.6

	n := 2 * len(s.units)
	if n == 0 {
		n = 4
	}
	values := make([]ltx.FrameValue, n)
	for i := range values {
		unit := ""
		if len(s.units) > 0 {
			unit = s.units[i%len(s.units)]
		}
		values[i] = ltx.V(s.value(unit))
	}

	if s.faults {
		switch s.rng.Intn(5) {
		case 0:
			values[s.rng.Intn(n)] = ltx.E(ltx.ErrNoReply)
			h.Alarm = ltx.AlarmActive
		case 1:
			battery = 2.5
		}
	}

	s.energy += 0.01 + s.rng.Float64()*0.02
	b := ltx.NewFrameBuilderFor(s.revision, h).
		F32(values...).
		HK(map[int]ltx.FrameValue{
			0: ltx.V(battery),
			1: ltx.V(20 + s.rng.Float64()*5),
			2: ltx.V(40 + s.rng.Float64()*10),
			3: ltx.V(s.energy),
			4: ltx.V(990 + s.rng.Float64()*40),
		})

	frame := b.MustBytes()
	if s.faults && s.rng.Intn(10) == 0 {
		// Lost tail on the radio link
		frame = frame[:len(frame)-1-s.rng.Intn(3)]
	}
	return frame
}

// writeLine writes one bridge line carrying the next frame
func (s *simulator) writeLine(w io.Writer, devEUI string) error {
	line := uplink.FormatUplinkLine(uplink.Uplink{DevEUI: devEUI, FPort: s.port, Payload: s.frame()})
	_, err := fmt.Fprintln(w, line)
	return err
}
