package katwalk

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/katwalk/pkg/cli/sh"
	"github.com/robotalks/katwalk/pkg/katwalk/msgs"
)

var (
	// StatusCmd exposes StatusQuery command.
	StatusCmd = ishell.Cmd{
		Name:    "kat.status",
		Aliases: []string{"ks"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.StatusQuery{})
		}),
	}

	// LEDCmd exposes SetLED command.
	LEDCmd = ishell.Cmd{
		Name:    "kat.led",
		Aliases: []string{"kled"},
		Help:    "LEVEL(0..1)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LEVEL required"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid LEVEL: %v", err))
				return
			}
			sh.DoCommand(c, &msgs.SetLED{Level: val})
		}),
	}

	// StartCmd starts streaming.
	StartCmd = ishell.Cmd{
		Name:    "kat.start",
		Aliases: []string{"kstart"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.StreamControl{Start: true})
		}),
	}

	// StopCmd stops streaming.
	StopCmd = ishell.Cmd{
		Name:    "kat.stop",
		Aliases: []string{"kstop"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.StreamControl{Start: false})
		}),
	}

	// RawCmd sends a raw frame.
	RawCmd = ishell.Cmd{
		Name:    "kat.raw",
		Aliases: []string{"kraw"},
		Help:    "HEX-BYTES",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX-BYTES required"))
				return
			}
			data, err := ParseHex(c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, &msgs.SendRaw{Data: data})
		}),
	}

	// ZeroCmd sets angle zero, to the current heading without DEGREES.
	ZeroCmd = ishell.Cmd{
		Name:    "kat.zero",
		Aliases: []string{"kz"},
		Help:    "[DEGREES]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			msg := msgs.SetAngleZero{Current: true}
			if len(c.Args) > 0 {
				val, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil {
					c.Err(fmt.Errorf("Invalid DEGREES: %v", err))
					return
				}
				msg.Degrees, msg.Current = val, false
			}
			sh.DoCommand(c, &msg)
		}),
	}
)

// ParseHex parses bytes in hex, either as a single string or one byte
// per argument. "0x" prefixes and ":" separators are accepted.
func ParseHex(args ...string) ([]byte, error) {
	var b strings.Builder
	for _, arg := range args {
		arg = strings.ReplaceAll(arg, ":", "")
		for _, part := range strings.Fields(arg) {
			part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
			if len(part)%2 != 0 {
				part = "0" + part
			}
			b.WriteString(part)
		}
	}
	data, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("Invalid HEX-BYTES: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("HEX-BYTES required")
	}
	return data, nil
}

func init() {
	sh.AddCmds(
		&StatusCmd,
		&LEDCmd,
		&StartCmd,
		&StopCmd,
		&RawCmd,
		&ZeroCmd,
	)
}
