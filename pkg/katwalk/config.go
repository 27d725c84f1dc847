package katwalk

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/katwalk/pkg/l0/comm"
	"github.com/robotalks/katwalk/pkg/l0/usb"
	env "github.com/robotalks/katwalk/pkg/l1/env/controller"
)

// Config defines the configurations for the gateway.
type Config struct {
	VendorID  uint
	ProductID uint
	// LEDLevel is applied on connect, negative leaves the LED as is.
	LEDLevel float64
	// MinInterval rate limits SensorUpdate events.
	MinInterval   time.Duration
	StatsInterval time.Duration
	// DBPath is the SQLite database path, empty disables persistence.
	DBPath      string
	StartOpcode uint
	StopOpcode  uint
}

var defaultConfig = Config{
	VendorID:      usb.DefaultVendorID,
	ProductID:     usb.DefaultProductID,
	LEDLevel:      -1,
	MinInterval:   10 * time.Millisecond,
	StatsInterval: time.Minute,
	StartOpcode:   uint(comm.DefaultOpcodes.StartStream),
	StopOpcode:    uint(comm.DefaultOpcodes.StopStream),
}

func init() {
	if val := os.Getenv("KATWALK_DB"); val != "" {
		defaultConfig.DBPath = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.UintVar(&defaultConfig.VendorID, "vid", defaultConfig.VendorID, "USB vendor id of the receiver.")
	flag.UintVar(&defaultConfig.ProductID, "pid", defaultConfig.ProductID, "USB product id of the receiver.")
	flag.Float64Var(&defaultConfig.LEDLevel, "led", defaultConfig.LEDLevel, "LED level in [0, 1] set on connect, negative to skip.")
	flag.DurationVar(&defaultConfig.MinInterval, "min-interval", defaultConfig.MinInterval, "Minimum interval between sensor events.")
	flag.DurationVar(&defaultConfig.StatsInterval, "stats-interval", defaultConfig.StatsInterval, "Interval of logging link stats, 0 to disable.")
	flag.StringVar(&defaultConfig.DBPath, "db", defaultConfig.DBPath, "SQLite database keeping sensor metadata.")
	flag.UintVar(&defaultConfig.StartOpcode, "start-opcode", defaultConfig.StartOpcode, "Opcode of the start-stream command.")
	flag.UintVar(&defaultConfig.StopOpcode, "stop-opcode", defaultConfig.StopOpcode, "Opcode of the stop-stream command.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Opcodes builds the outbound opcodes.
func (c *Config) Opcodes() (comm.Opcodes, error) {
	ops := comm.DefaultOpcodes
	if c.StartOpcode > 0xff || c.StopOpcode > 0xff {
		return ops, fmt.Errorf("opcode out of range: start %#x stop %#x", c.StartOpcode, c.StopOpcode)
	}
	ops.StartStream, ops.StopStream = byte(c.StartOpcode), byte(c.StopOpcode)
	return ops, nil
}

// NewGateway creates a Gateway using the config.
func (c *Config) NewGateway(e *env.Env) (*Gateway, error) {
	if c.VendorID > 0xffff || c.ProductID > 0xffff {
		return nil, fmt.Errorf("invalid usb id %x:%x", c.VendorID, c.ProductID)
	}
	if c.LEDLevel > 1 {
		return nil, fmt.Errorf("LED level %v out of range", c.LEDLevel)
	}
	ops, err := c.Opcodes()
	if err != nil {
		return nil, err
	}
	g := NewGateway(e.Registrar, USBOpener(uint16(c.VendorID), uint16(c.ProductID)))
	g.Meta = e.Config.Info.Meta
	g.Opcodes = ops
	g.LEDLevel = c.LEDLevel
	g.MinInterval = c.MinInterval
	if c.DBPath != "" {
		if g.Store, err = OpenStore(c.DBPath); err != nil {
			return nil, err
		}
	}
	g.Stats = NewStatsReporter(g, c.StatsInterval)
	return g, nil
}

// MustNewGateway creates a Gateway and fails on error.
func (c *Config) MustNewGateway(e *env.Env) *Gateway {
	g, err := c.NewGateway(e)
	if err != nil {
		glog.Exit(err)
	}
	return g
}
