package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"taskrunner/pkg/api"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DefaultPort is used when the channel config does not set one.
const DefaultPort = 8000

type WebConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the listen address.
func (c WebConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, fmt.Sprint(port))
}

// IncomingMessage is a websocket frame. Frames that are not JSON objects are
// treated as plain task text.
type IncomingMessage struct {
	Task string `json:"task"`
	Read string `json:"read"`
}

// FileMessage answers a websocket read request.
type FileMessage struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteMessage(messageType int, data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(messageType, data)
}

func (sc *SafeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sc.WriteMessage(websocket.TextMessage, data)
}

// WebChannel serves the HTTP task API and a websocket task stream.
type WebChannel struct {
	config      WebConfig
	server      *http.Server
	connections map[string]*SafeConn // remote addr -> ws connection
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

func NewWebChannel(cfg WebConfig) *WebChannel {
	return &WebChannel{
		config:      cfg,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler returns the channel's routes bound to tc.
func (c *WebChannel) Handler(tc api.TaskContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		c.handleRun(w, r, tc)
	})
	mux.HandleFunc("GET /read", func(w http.ResponseWriter, r *http.Request) {
		c.handleRead(w, r, tc)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, tc)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (c *WebChannel) Start(tc api.TaskContext) error {
	addr := c.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web channel listen on %s: %w", addr, err)
	}

	c.server = &http.Server{
		Handler:           c.Handler(tc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web API listening", "addr", ln.Addr().String())

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	if c.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.server.Shutdown(ctx)

	// Hijacked websocket connections are not closed by Shutdown.
	c.mu.Lock()
	for _, conn := range c.connections {
		conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
	return err
}

func (c *WebChannel) session(r *http.Request) api.SessionContext {
	return api.SessionContext{
		ChannelID: c.ID(),
		UserID:    r.RemoteAddr,
		Username:  r.RemoteAddr,
	}
}

func (c *WebChannel) handleRun(w http.ResponseWriter, r *http.Request, tc api.TaskContext) {
	text := r.URL.Query().Get("task")
	// A client disconnect must not abort a running handler; the gateway's
	// task deadline bounds it instead.
	env := tc.Submit(context.WithoutCancel(r.Context()), c.session(r), text)
	writeJSON(w, env.HTTPStatus(), env)
}

func (c *WebChannel) handleRead(w http.ResponseWriter, r *http.Request, tc api.TaskContext) {
	path := r.URL.Query().Get("path")
	if strings.TrimSpace(path) == "" {
		writeReadError(w, taskerr.MissingParameter("path query parameter is required"))
		return
	}

	data, err := tc.Read(r.Context(), c.session(r), path)
	if err != nil {
		writeReadError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// NotFound is 404 on /read; inside task handlers the same kind is a 500.
func writeReadError(w http.ResponseWriter, err error) {
	kind := taskerr.KindOf(err)
	status := kind.HTTPStatus()
	if kind == taskerr.KindNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, task.Envelope{
		Status: task.StatusError,
		Task:   "read",
		Detail: err.Error(),
		Kind:   kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, tc api.TaskContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	userID := r.RemoteAddr

	c.mu.Lock()
	c.connections[userID] = conn
	c.mu.Unlock()
	c.wg.Add(1)

	defer func() {
		c.mu.Lock()
		delete(c.connections, userID)
		c.mu.Unlock()
		conn.Close()
		c.wg.Done()
	}()

	session := api.SessionContext{
		ChannelID: c.ID(),
		UserID:    userID,
		ChatID:    userID,
		Username:  "WebUser",
	}
	// The request context is detached once the connection is hijacked.
	ctx := context.WithoutCancel(r.Context())

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var incoming IncomingMessage
		if err := json.Unmarshal(msgBytes, &incoming); err != nil {
			incoming = IncomingMessage{Task: string(msgBytes)}
		}

		var reply any
		if incoming.Read != "" {
			reply = c.wsRead(ctx, tc, session, incoming.Read)
		} else {
			reply = tc.Submit(ctx, session, incoming.Task)
		}

		if err := conn.WriteJSON(reply); err != nil {
			slog.Debug("WS write failed", "user", userID, "error", err)
			break
		}
	}
}

func (c *WebChannel) wsRead(ctx context.Context, tc api.TaskContext, session api.SessionContext, path string) any {
	data, err := tc.Read(ctx, session, path)
	if err != nil {
		return task.Envelope{
			Status: task.StatusError,
			Task:   "read",
			Detail: err.Error(),
			Kind:   taskerr.KindOf(err),
		}
	}
	return FileMessage{Type: "file", Path: path, Content: string(data)}
}
