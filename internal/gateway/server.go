// Package gateway exposes runs over a websocket endpoint: a client submits a
// goal and receives the run's event stream followed by the final result.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentfactory/loopkit/internal/loop"
	"github.com/agentfactory/loopkit/internal/schema"
)

// RunnerFactory produces a fresh runner per connection. maxIterations <= 0
// means the configured default.
type RunnerFactory func(maxIterations int) *loop.Runner

// Server serves websocket run sessions.
type Server struct {
	addr       string
	newRunner  RunnerFactory
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// runRequest is the first frame a client sends.
type runRequest struct {
	Goal          string `json:"goal"`
	MaxIterations int    `json:"maxIterations,omitempty"`
}

// frame is every message the server sends.
type frame struct {
	Type  string `json:"type"` // "event" | "result" | "error"
	Event *struct {
		RunID string         `json:"runId"`
		Kind  string         `json:"kind"`
		Data  map[string]any `json:"data,omitempty"`
	} `json:"event,omitempty"`
	Result *runResultFrame `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type runResultFrame struct {
	RunID        string `json:"runId"`
	Status       string `json:"status"`
	StopReason   string `json:"stopReason,omitempty"`
	FinalContent string `json:"finalContent,omitempty"`
	Iterations   int    `json:"iterations"`
	DurationMs   int64  `json:"durationMs"`
}

// NewServer creates a gateway listening on addr (host:port).
func NewServer(addr string, factory RunnerFactory) *Server {
	return &Server{
		addr:      addr,
		newRunner: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway binds to loopback by default; cross-origin browser
			// clients are expected during local development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway: listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the websocket handler for mounting in tests.
func (s *Server) Handler() http.HandlerFunc { return s.handleWS }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var req runRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeError(conn, fmt.Sprintf("bad request: %v", err))
		return
	}
	if req.Goal == "" {
		writeError(conn, "goal is required")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A disconnect cancels the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	runner := s.newRunner(req.MaxIterations)
	emitter := loop.NewEmitter(256)
	runner.SetEmitter(emitter)

	resultCh := make(chan *schema.RunResult, 1)
	go func() {
		resultCh <- runner.Run(ctx, req.Goal)
		emitter.Close()
	}()

	for ev := range emitter.Events() {
		if err := writeEvent(conn, ev); err != nil {
			cancel()
			break
		}
	}

	res := <-resultCh
	slog.Info("gateway: run finished", "run_id", res.RunID, "status", res.Status)
	_ = conn.WriteJSON(frame{Type: "result", Result: &runResultFrame{
		RunID:        res.RunID,
		Status:       string(res.Status),
		StopReason:   string(res.StopReason),
		FinalContent: res.FinalContent,
		Iterations:   res.Iterations,
		DurationMs:   res.Duration.Milliseconds(),
	}})
}

func writeEvent(conn *websocket.Conn, ev loop.Event) error {
	f := frame{Type: "event"}
	f.Event = &struct {
		RunID string         `json:"runId"`
		Kind  string         `json:"kind"`
		Data  map[string]any `json:"data,omitempty"`
	}{RunID: ev.RunID, Kind: string(ev.Type), Data: ev.Data}
	return conn.WriteJSON(f)
}

func writeError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(frame{Type: "error", Error: msg})
}
