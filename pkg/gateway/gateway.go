package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/kernel"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/shared"
	"github.com/mukuvi/mukuvios/pkg/shell"
)

// loginErrorMessage is returned for every failed login, regardless of
// whether the username exists.
const loginErrorMessage = "invalid username or password"

// Gateway is the browser-facing surface: the login and system-info HTTP
// endpoints plus the WebSocket command channel.
type Gateway struct {
	kernel   *kernel.Kernel
	shell    *shell.Shell
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client

	// closed once when a session runs the shutdown command
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New creates the gateway over a booted kernel.
func New(k *kernel.Kernel, sh *shell.Shell) *Gateway {
	g := &Gateway{
		kernel:     k,
		shell:      sh,
		clients:    make(map[string]*Client),
		shutdownCh: make(chan struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return g
}

// checkOrigin allows only the configured origins. Requests without an
// Origin header (non-browser clients, tests) are accepted.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := configuration.GetString("Network", "allowed_origins", "")
	for _, candidate := range strings.Split(allowed, ",") {
		if strings.TrimSpace(candidate) == origin {
			return true
		}
	}
	logger.GatewayWarn("rejected websocket origin %s", origin)
	return false
}

// ShutdownRequested is closed when a session executes the shutdown command.
func (g *Gateway) ShutdownRequested() <-chan struct{} {
	return g.shutdownCh
}

// RegisterRoutes attaches the gateway endpoints to a mux.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", g.HandleLogin)
	mux.HandleFunc("/api/system-info", g.HandleSystemInfo)
	mux.HandleFunc("/ws", g.HandleWebSocket)
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// HandleLogin implements POST /api/login. The error body is identical for
// unknown users and wrong passwords.
func (g *Gateway) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, shared.LoginResponse{Success: false, Error: "method not allowed"})
		return
	}

	var req shared.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, shared.LoginResponse{Success: false, Error: "malformed request"})
		return
	}

	session, err := g.kernel.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			respondJSON(w, http.StatusUnauthorized, shared.LoginResponse{Success: false, Error: loginErrorMessage})
			return
		}
		logger.GatewayError("login failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, shared.LoginResponse{Success: false, Error: "internal error"})
		return
	}

	token, err := GenerateSessionToken(session.ID, session.Username)
	if err != nil {
		logger.GatewayError("token generation failed: %v", err)
		g.kernel.Identity.Logout(session.ID)
		respondJSON(w, http.StatusInternalServerError, shared.LoginResponse{Success: false, Error: "internal error"})
		return
	}

	respondJSON(w, http.StatusOK, shared.LoginResponse{
		Success:   true,
		SessionID: session.ID,
		Token:     token,
		User:      session.Username,
	})
}

// HandleSystemInfo implements GET /api/system-info.
func (g *Gateway) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, g.kernel.SystemInfo())
}

// HandleWebSocket upgrades the connection after validating the login
// token and binds the client to its session.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := ValidateSessionToken(tokenString)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if _, err := g.kernel.Identity.GetSession(claims.SessionID); err != nil {
		http.Error(w, "session expired", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.GatewayError("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		sessionID: claims.SessionID,
		conn:      conn,
		send:      make(chan []byte, configuration.GetInt("Network", "max_channel_buffer", 256)),
		gateway:   g,
	}

	g.mu.Lock()
	g.clients[client.id] = client
	g.mu.Unlock()

	logger.GatewayInfo("client %s connected for session %s", client.id, claims.SessionID)

	go client.readPump()
	go client.writePump()
}

func (g *Gateway) removeClient(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c.id]; ok {
		delete(g.clients, c.id)
		close(c.send)
	}
	g.mu.Unlock()
	logger.GatewayInfo("client %s disconnected", c.id)
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// handleMessage dispatches one inbound wire message.
func (g *Gateway) handleMessage(c *Client, msg *shared.Message) {
	switch msg.Type {
	case shared.MessageTypeExecuteCommand:
		g.handleExecuteCommand(c, msg)
	case shared.MessageTypeGetDirectoryListing:
		g.handleDirectoryListing(c, msg)
	default:
		c.sendMessage(shared.Message{Type: shared.MessageTypeError, Error: "unknown message type"})
	}
}

// sessionIDFor picks the session a request runs under. Clients may send a
// sessionId explicitly; it must match the one the connection is bound to.
func (g *Gateway) sessionIDFor(c *Client, msg *shared.Message) (string, bool) {
	if msg.SessionID != "" && msg.SessionID != c.sessionID {
		return "", false
	}
	return c.sessionID, true
}

func (g *Gateway) handleExecuteCommand(c *Client, msg *shared.Message) {
	sessionID, ok := g.sessionIDFor(c, msg)
	if !ok {
		c.sendMessage(shared.Message{Type: shared.MessageTypeCommandResult, Error: "invalid session"})
		return
	}

	result := g.shell.Execute(context.Background(), sessionID, msg.Command)

	c.sendMessage(shared.Message{
		Type:       shared.MessageTypeCommandResult,
		Output:     result.Output,
		Error:      result.Err,
		CurrentDir: result.CurrentDir,
	})

	if result.Shutdown {
		logger.GatewayInfo("shutdown requested by session %s", sessionID)
		g.shutdownOnce.Do(func() { close(g.shutdownCh) })
	}
}

func (g *Gateway) handleDirectoryListing(c *Client, msg *shared.Message) {
	sessionID, ok := g.sessionIDFor(c, msg)
	if !ok {
		c.sendMessage(shared.Message{Type: shared.MessageTypeDirectoryListing, Error: "invalid session"})
		return
	}

	session, err := g.kernel.Identity.GetSession(sessionID)
	if err != nil {
		c.sendMessage(shared.Message{Type: shared.MessageTypeDirectoryListing, Error: "invalid session"})
		return
	}

	target := msg.Path
	if target == "" {
		target = "."
	}

	entries, err := g.kernel.Filesystem.List(session.CurrentDir, target)
	if err != nil {
		c.sendMessage(shared.Message{Type: shared.MessageTypeDirectoryListing, Error: err.Error()})
		return
	}

	wireEntries := make([]shared.DirEntry, 0, len(entries))
	for _, e := range entries {
		wireEntries = append(wireEntries, shared.DirEntry{Name: e.Name, IsDir: e.IsDir, Size: e.Size, Modified: e.Modified})
	}

	c.sendMessage(shared.Message{
		Type:        shared.MessageTypeDirectoryListing,
		Entries:     wireEntries,
		CurrentPath: g.kernel.Filesystem.Resolve(session.CurrentDir, target),
	})
}

// CloseAll disconnects every client. Used during shutdown.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.clients {
		c.conn.Close()
		delete(g.clients, id)
		close(c.send)
	}
}
