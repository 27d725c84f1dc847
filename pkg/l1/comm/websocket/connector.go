package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/websocket"

	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm"
)

// Connector implements l1.Connector against a single Server.
type Connector struct {
	HTTPClient *http.Client

	server *url.URL
}

// NewConnector creates a Connector from ws://HOST:PORT.
func NewConnector(serverURL string) (*Connector, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("websocket host missing in %q", serverURL)
	}
	return &Connector{HTTPClient: http.DefaultClient, server: u}, nil
}

func (c *Connector) endpoint(scheme, path string) string {
	u := *c.server
	u.Scheme, u.Path, u.RawQuery = scheme, path, ""
	return u.String()
}

func (c *Connector) httpScheme() string {
	if c.server.Scheme == "wss" {
		return "https"
	}
	return "http"
}

// Discover implements Connector. A Server serves exactly one gateway.
func (c *Connector) Discover(ctx context.Context) ([]l1.ControllerInfo, error) {
	req, err := http.NewRequest(http.MethodGet, c.endpoint(c.httpScheme(), MetaPath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover: %s", resp.Status)
	}
	var info l1.ControllerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return []l1.ControllerInfo{info}, nil
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	infos, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if ref.IsValid() && infos[0].Ref != ref {
		return nil, fmt.Errorf("%s not served at %s", ref.Name(), c.server.Host)
	}
	conn, err := websocket.Dial(c.endpoint(c.server.Scheme, StreamPath), "", c.endpoint(c.httpScheme(), "/"))
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	cc := &ControllerConn{}
	cc.Init(New(conn))
	return cc, nil
}

// ControllerConn implements ControllerConn over websocket.
type ControllerConn struct {
	comm.ControllerConn
}
