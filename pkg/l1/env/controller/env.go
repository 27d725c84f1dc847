// Package controller sets up the environment of an L1 gateway: its
// identity and the registrars it's reachable through.
package controller

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm"
	"github.com/robotalks/katwalk/pkg/l1/comm/mqtt"
	"github.com/robotalks/katwalk/pkg/l1/comm/websocket"
	"github.com/robotalks/katwalk/pkg/l1/env"
)

// Config provides common options to setup an env for L1 gateways.
type Config struct {
	Info l1.ControllerInfo

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr is the listen address of the websocket server,
	// disabled when empty.
	WebSocketAddr string
}

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/katwalk/",
}

func init() {
	if val := os.Getenv("KATWALK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("KATWALK_WS_ADDR"); val != "" {
		defaultConfig.WebSocketAddr = val
	}
	if val := os.Getenv("KATWALK_ID"); val != "" {
		defaultConfig.Info.Ref.ID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	env.SetupFlags()
	flag.StringVar(&defaultConfig.Info.Ref.Type, "type", defaultConfig.Info.Ref.Type, "Gateway type")
	flag.StringVar(&defaultConfig.Info.Ref.ID, "id", defaultConfig.Info.Ref.ID, "Gateway ID, default to machine id")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Websocket listen address, e.g. :8080")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// SetControllerType should be called in init with basic info about the gateway.
func SetControllerType(typ string, meta l1.ControllerMeta) {
	defaultConfig.Info.Ref.Type = typ
	defaultConfig.Info.Meta = meta
}

// Env is the env for L1 gateways.
type Env struct {
	Config       *Config
	RegistryURLs []string
	Registrar    *comm.RegistrarMux
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if c.Info.Ref.ID == "" {
		c.Info.Ref.ID = env.MachineID()
	}
	if !c.Info.Ref.IsValid() {
		return nil, fmt.Errorf("gateway type and id must be specified")
	}
	e := &Env{
		Config:    c,
		Registrar: &comm.RegistrarMux{},
	}
	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.Info)
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %w", err)
		}
		e.Registrar.Add(reg)
		e.RegistryURLs = append(e.RegistryURLs, c.MQTTBrokerURL)
	}
	if c.WebSocketAddr != "" {
		e.Registrar.Add(websocket.NewServer(c.WebSocketAddr, c.Info))
		e.RegistryURLs = append(e.RegistryURLs, "ws://"+c.WebSocketAddr)
	}
	if e.Registrar.Len() == 0 {
		return nil, fmt.Errorf("at least one registrar is required")
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		glog.Exit(err)
	}
	return e
}

// AddToLoop adds controllers/runners to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Registrar)
	loop.Add(&comm.UnsupportedCommands{})
}
