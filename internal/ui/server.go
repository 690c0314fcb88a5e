package ui

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

// Server exposes a Bridge over HTTP: websocket clients on /ws/ and the
// connected debugger ids on /sessions.
type Server struct {
	bridge   *Bridge
	config   config.UIConfig
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   *zap.SugaredLogger
}

func NewServer(cfg config.UIConfig, bridge *Bridge) *Server {
	s := &Server{
		bridge: bridge,
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		logger: bridge.logger.Named("server"),
	}
	s.mux.HandleFunc("/ws/", s.connect)
	s.mux.HandleFunc("/sessions", s.getSessions)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts UI clients on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("UI server shutdown failed", "error", err)
		}
	}()
	s.logger.Infow("UI server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionsResponse struct {
	Session   string   `json:"session"`
	Master    string   `json:"master"`
	Debuggers []string `json:"debuggers"`
}

func (s *Server) getSessions(w http.ResponseWriter, r *http.Request) {
	info, err := s.bridge.ctrl.Info(r.Context())
	if err != nil {
		s.logger.Warnw("Failed to read session", "error", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := sessionsResponse{Session: info.ID, Master: info.Master, Debuggers: info.Debuggers}
	if resp.Debuggers == nil {
		resp.Debuggers = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warnw("Error encoding sessions", "error", err)
	}
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	hub := s.bridge.hub
	if s.config.MaxClients > 0 && hub.Len() >= s.config.MaxClients {
		s.logger.Warnw("Max clients reached, rejecting client", "maxClients", s.config.MaxClients)
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	welcome, err := s.bridge.Welcome(r.Context(), id)
	if err != nil {
		s.logger.Warnw("Failed to build welcome", "error", err)
		_ = conn.Close()
		return
	}

	c := NewConnection(conn, hub, id)
	c.send <- welcome
	if !hub.Register(c) {
		_ = conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}
