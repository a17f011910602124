// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "encoding/json"

// jsonReading is the network-server rendering of one channel
type jsonReading struct {
	Channel int      `json:"channel"`
	Unit    string   `json:"unit,omitempty"`
	Prec    string   `json:"prec"`
	Value   *float64 `json:"value,omitempty"`
	Msg     string   `json:"msg,omitempty"`
}

type jsonResult struct {
	Flags  string        `json:"flags"`
	Reason string        `json:"reason"`
	Chans  []jsonReading `json:"chans"`
}

type jsonErrors struct {
	Errors []string `json:"errors"`
}

// MarshalJSON renders a reading as {"channel","unit","prec","value"|"msg"}
func (r ChannelReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONReading(r))
}

func toJSONReading(r ChannelReading) jsonReading {
	jr := jsonReading{Channel: r.channel, Unit: r.unit, Prec: r.precision.String()}
	if r.isError {
		jr.Msg = r.code.String()
	} else {
		v := r.value
		jr.Value = &v
	}
	return jr
}

// MarshalJSON renders the result in the shape LTX network-server decoders
// return as uplink "data"
func (d *DecodeResult) MarshalJSON() ([]byte, error) {
	out := jsonResult{
		Flags:  d.Header.FlagsString(),
		Reason: d.Header.Reason.String(),
		Chans:  make([]jsonReading, 0, len(d.Channels)),
	}
	for _, r := range d.Channels {
		out.Chans = append(out.Chans, toJSONReading(r))
	}
	return json.Marshal(out)
}

// UplinkJSON renders a decode outcome: the result, or {"errors":[...]}
func UplinkJSON(res *DecodeResult, err error) ([]byte, error) {
	if err != nil {
		return json.Marshal(jsonErrors{Errors: []string{err.Error()}})
	}
	return json.Marshal(res)
}

// DownlinkJSON renders an encode outcome in the network-server shape
func DownlinkJSON(d *Downlink, err error) ([]byte, error) {
	if err != nil {
		return json.Marshal(jsonErrors{Errors: []string{err.Error()}})
	}
	bytes := make([]int, len(d.Bytes))
	for i, b := range d.Bytes {
		bytes[i] = int(b)
	}
	return json.Marshal(struct {
		FPort    int      `json:"fPort"`
		Bytes    []int    `json:"bytes"`
		Warnings []string `json:"warnings,omitempty"`
	}{FPort: d.FPort, Bytes: bytes, Warnings: d.Warnings})
}
