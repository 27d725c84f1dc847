package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm"
)

// Endpoint paths served by Server.
const (
	StreamPath = "/ws"
	MetaPath   = "/meta"
)

// Server is an l1.Registrar accepting L2 consumers over websocket.
// Every connected client receives all events and may send commands.
type Server struct {
	Addr string
	Info l1.ControllerInfo

	listener net.Listener
	ctx      context.Context
	clients  map[*comm.Registrar]string
	lock     sync.RWMutex
}

// NewServer creates a Server listening on addr once run.
func NewServer(addr string, info l1.ControllerInfo) *Server {
	return &Server{Addr: addr, Info: info, clients: make(map[*comm.Registrar]string)}
}

// Listen opens the listener ahead of Run, returning the bound address.
func (s *Server) Listen() (net.Addr, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			return nil, err
		}
		s.listener = ln
	}
	return s.listener.Addr(), nil
}

// SendEvent implements Registrar.
func (s *Server) SendEvent(ctx context.Context, msg fx.Message) error {
	s.lock.RLock()
	clients := make([]*comm.Registrar, 0, len(s.clients))
	for reg := range s.clients {
		clients = append(clients, reg)
	}
	s.lock.RUnlock()
	var errs fx.AggregatedError
	for _, reg := range clients {
		if err := reg.SendEvent(ctx, msg); err != nil {
			// the reading side notices the closed connection and cleans up.
			reg.Close()
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}

// UpdateMeta implements MetaUpdater.
func (s *Server) UpdateMeta(ctx context.Context, meta l1.ControllerMeta) error {
	s.lock.Lock()
	s.Info.Meta = meta
	s.lock.Unlock()
	return nil
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.clients)
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(s)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	s.lock.Lock()
	s.ctx = ctx
	s.lock.Unlock()

	mux := http.NewServeMux()
	mux.Handle(StreamPath, websocket.Handler(s.serveStream))
	mux.HandleFunc(MetaPath, s.serveMeta)
	srv := &http.Server{Handler: mux}
	glog.Infof("websocket listening on %s", s.listener.Addr())
	err := fx.RunWithContextCloser(ctx, srv, func() error {
		return srv.Serve(s.listener)
	})
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) serveMeta(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	info := s.Info
	s.lock.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&info)
}

func (s *Server) serveStream(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	remote := conn.Request().RemoteAddr
	reg := comm.NewRegistrar(New(conn))
	s.lock.Lock()
	ctx := s.ctx
	s.clients[reg] = remote
	s.lock.Unlock()
	glog.Infof("websocket client %s connected", remote)

	err := reg.Run(ctx)

	s.lock.Lock()
	delete(s.clients, reg)
	s.lock.Unlock()
	glog.Infof("websocket client %s disconnected: %v", remote, err)
}
