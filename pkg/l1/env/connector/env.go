// Package connector sets up Connectors for L2 consumers.
package connector

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm/mqtt"
	"github.com/robotalks/katwalk/pkg/l1/comm/websocket"
	"github.com/robotalks/katwalk/pkg/l1/env"
)

// Config provides common options to setup Connectors.
type Config struct {
	Ref l1.ControllerRef

	// RegistryURL specifies the URL of gateway registry.
	// e.g. mqtt://host:port/topic-prefix or ws://host:port
	RegistryURL string
}

var defaultConfig = Config{
	RegistryURL: "mqtt://localhost:1883/katwalk/",
}

func init() {
	if val := os.Getenv("KATWALK_TYPE"); val != "" {
		defaultConfig.Ref.Type = val
	}
	if val := os.Getenv("KATWALK_ID"); val != "" {
		defaultConfig.Ref.ID = val
	}
	if val := os.Getenv("KATWALK_REGISTRY_URL"); val != "" {
		defaultConfig.RegistryURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	env.SetupFlags()
	flag.StringVar(&defaultConfig.Ref.Type, "gw-type", defaultConfig.Ref.Type, "Gateway type to connect.")
	flag.StringVar(&defaultConfig.Ref.ID, "gw-id", defaultConfig.Ref.ID, "Gateway ID to connect.")
	flag.StringVar(&defaultConfig.RegistryURL, "registry", defaultConfig.RegistryURL, "Gateway registry URL.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewConnector creates a Connector using current config.
func (c *Config) NewConnector() (l1.Connector, error) {
	parsedURL, err := url.Parse(c.RegistryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "mqtt", "tcp", "ssl":
		return mqtt.NewConnector(c.RegistryURL)
	case "ws", "wss":
		return websocket.NewConnector(c.RegistryURL)
	default:
		return nil, fmt.Errorf("unknown registry URL scheme: %q", parsedURL.Scheme)
	}
}

// MustNewConnector creates a Connector and fails on error.
func (c *Config) MustNewConnector() l1.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		glog.Exit(err)
	}
	return conn
}

// Connect directly connects to L1 gateway.
func (c *Config) Connect(ctx context.Context) (l1.ControllerConn, error) {
	if !c.Ref.IsValid() {
		return nil, fmt.Errorf("gateway type and id must be specified")
	}
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx, c.Ref)
}
