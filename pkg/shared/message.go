package shared

import "time"

// MessageType identifies a message on the WebSocket channel. The string
// values are part of the wire contract with the browser front-end.
type MessageType string

const (
	// Client -> server
	MessageTypeExecuteCommand      MessageType = "execute-command"
	MessageTypeGetDirectoryListing MessageType = "get-directory-listing"

	// Server -> client
	MessageTypeCommandResult    MessageType = "command-result"
	MessageTypeDirectoryListing MessageType = "directory-listing"
	MessageTypeError            MessageType = "error"
)

// Message is the envelope for everything sent or received on the WebSocket.
// Field names match what the front-end reads directly.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`

	// execute-command request
	Command string `json:"command,omitempty"`

	// command-result response
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	CurrentDir string `json:"currentDir,omitempty"`

	// get-directory-listing request / directory-listing response
	Path        string     `json:"path,omitempty"`
	Entries     []DirEntry `json:"entries,omitempty"`
	CurrentPath string     `json:"currentPath,omitempty"`
}

// DirEntry describes one entry of a directory listing.
type DirEntry struct {
	Name     string    `json:"name"`
	IsDir    bool      `json:"isDir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// CommandResult is what a shell command handler produces. Err carries
// user-facing failure text as data, it is never a Go error that aborts
// the dispatch loop. CurrentDir is set only when the command changed the
// session's working directory.
type CommandResult struct {
	Output     string
	Err        string
	CurrentDir string
	Exit       bool // the session asked to leave
	Shutdown   bool // the whole system should go down
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the reply to POST /api/login. Error text is identical
// for unknown users and wrong passwords.
type LoginResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	User      string `json:"user,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SystemInfo is the reply to GET /api/system-info.
type SystemInfo struct {
	OSName       string `json:"osName"`
	Version      string `json:"version"`
	BootTime     string `json:"bootTime"`
	Uptime       string `json:"uptime"`
	ProcessCount int    `json:"processCount"`
	UserCount    int    `json:"userCount"`
}
