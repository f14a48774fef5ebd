package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"rovercode-go/errcode"
	"rovercode-go/services/config"
	"rovercode-go/types"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatCBOR = "cbor"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, f string) (*printer, error) {
	switch f {
	case formatText, formatJSON, formatCBOR:
		return &printer{w: w, format: f}, nil
	}
	return nil, errcode.New(errcode.InvalidConfig, "roverctl.format", fmt.Sprintf("unknown format %q", f))
}

// print writes v in the selected format. CBOR output is one raw item with
// no trailing newline.
func (p *printer) print(v any) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatCBOR:
		b, err := cbor.Marshal(v)
		if err != nil {
			return errcode.Wrap(errcode.FrameError, "roverctl.cbor", "", err)
		}
		_, err = p.w.Write(b)
		return err
	}
	_, err := io.WriteString(p.w, textOf(v))
	return err
}

func textOf(v any) string {
	switch x := v.(type) {
	case types.PWMValue:
		return fmt.Sprintf("pwm 0x%02X: %d Hz (prescale %d, actual %.2f Hz)\n", x.Addr, x.Frequency, x.Prescale, x.ActualHz)
	case types.DriveValue:
		return fmt.Sprintf("drive %s: speed %.3f duty %d\n", x.Direction, x.Speed, x.Duty)
	case types.SteerValue:
		return fmt.Sprintf("steer %+d: off %d\n", x.Rel, x.OffTicks)
	case types.DacValue:
		return fmt.Sprintf("dac %s (0x%02X): control 0x%02X\n", x.Name, x.Addr, x.Control)
	case []types.DacFault:
		if len(x) == 0 {
			return "no faults\n"
		}
		var b strings.Builder
		for _, f := range x {
			fmt.Fprintf(&b, "dac %s (0x%02X): %s [0x%02X]\n", f.Name, f.Addr, f.Fault, f.Raw)
		}
		return b.String()
	case types.TemperatureValue:
		s := fmt.Sprintf("%.4f °C", x.Celsius)
		for _, a := range []struct {
			on   bool
			name string
		}{{x.Critical, "critical"}, {x.AboveUpper, "above upper"}, {x.BelowLower, "below lower"}} {
			if a.on {
				s += " [" + a.name + "]"
			}
		}
		return s + "\n"
	case types.RangeValue:
		return fmt.Sprintf("%.1f cm (%.1f ms)\n", x.DistanceCm, x.ElapsedMs)
	case types.CoprocValue:
		return fmt.Sprintf("coproc %s: token %d value %d (ma %d, mb %d)\n", x.Status, x.Token, x.Value, x.NumberMA, x.NumberMB)
	case busEvent:
		return x.Topic + " " + textOf(x.Payload)
	case *config.Config:
		b, err := yaml.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%+v\n", x)
		}
		return string(b)
	}
	return fmt.Sprintf("%v\n", v)
}
