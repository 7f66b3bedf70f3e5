package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

// Errors returned by identity operations
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
)

// User is a persisted account record. The password hash never leaves the
// package.
type User struct {
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
	LastLogin time.Time
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Manager owns user accounts (persisted in SQLite) and login sessions
// (in-memory only, gone after a restart).
type Manager struct {
	db       *sql.DB
	sessions *sessionStore

	minUsernameLen int
	maxUsernameLen int
	minPasswordLen int
	maxPasswordLen int
	hashCost       int
}

// NewManager creates the identity manager over an open database handle.
// The users table is created when missing.
func NewManager(db *sql.DB) (*Manager, error) {
	m := &Manager{
		db:             db,
		sessions:       newSessionStore(),
		minUsernameLen: configuration.GetInt("Authentication", "min_username_length", 3),
		maxUsernameLen: configuration.GetInt("Authentication", "max_username_length", 20),
		minPasswordLen: configuration.GetInt("Authentication", "min_password_length", 4),
		maxPasswordLen: configuration.GetInt("Authentication", "max_password_length", 100),
		hashCost:       configuration.GetInt("Authentication", "password_hash_cost", bcrypt.DefaultCost),
	}

	if err := m.createTables(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) createTables() error {
	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		is_admin INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_login INTEGER DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// EnsureAdminUser creates the configured admin account on first boot.
func (m *Manager) EnsureAdminUser() error {
	adminUser := configuration.GetString("Authentication", "admin_user", "admin")
	adminPassword := configuration.GetString("Authentication", "admin_password", "mukuvi")

	var count int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", adminUser).Scan(&count); err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), m.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = m.db.Exec(`INSERT INTO users (username, password, is_admin, created_at) VALUES (?, ?, 1, ?)`,
		adminUser, string(hashed), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info(logger.AreaAuth, "created default admin user %s", adminUser)
	return nil
}

// validateUsername checks length and character set.
func (m *Manager) validateUsername(username string) error {
	if len(username) < m.minUsernameLen || len(username) > m.maxUsernameLen {
		return fmt.Errorf("%w: length must be %d-%d characters", ErrInvalidUsername, m.minUsernameLen, m.maxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: only letters, digits, - and _ are allowed", ErrInvalidUsername)
	}
	return nil
}

// CreateUser registers a new account.
func (m *Manager) CreateUser(username, password string) error {
	if err := m.validateUsername(username); err != nil {
		return err
	}
	if len(password) < m.minPasswordLen || len(password) > m.maxPasswordLen {
		return fmt.Errorf("%w: length must be %d-%d characters", ErrInvalidPassword, m.minPasswordLen, m.maxPasswordLen)
	}

	var count int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count); err != nil {
		return fmt.Errorf("failed to check for existing user: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%s: %w", username, ErrUserExists)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), m.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = m.db.Exec(`INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)`,
		username, string(hashed), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info(logger.AreaAuth, "created user %s", username)
	return nil
}

// Authenticate verifies a username/password pair. Unknown users and wrong
// passwords produce the same ErrInvalidCredentials so callers cannot
// enumerate accounts. A bcrypt comparison runs in both cases to keep the
// timing similar.
func (m *Manager) Authenticate(username, password string) error {
	var storedHash string
	err := m.db.QueryRow("SELECT password FROM users WHERE username = ?", username).Scan(&storedHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			logger.Warn(logger.AreaAuth, "failed login for unknown user")
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) != nil {
		logger.Warn(logger.AreaAuth, "failed login for %s", username)
		return ErrInvalidCredentials
	}

	_, _ = m.db.Exec("UPDATE users SET last_login = ? WHERE username = ?", time.Now().Unix(), username)
	logger.Info(logger.AreaAuth, "user %s authenticated", username)
	return nil
}

// dummyHash is a bcrypt hash of an unguessable value, used to equalize
// the timing of failed lookups.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// GetUser returns the public record of one account.
func (m *Manager) GetUser(username string) (*User, error) {
	var u User
	var isAdmin int
	var createdAt, lastLogin int64
	err := m.db.QueryRow("SELECT username, is_admin, created_at, last_login FROM users WHERE username = ?", username).
		Scan(&u.Username, &isAdmin, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", username, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = time.Unix(createdAt, 0)
	if lastLogin > 0 {
		u.LastLogin = time.Unix(lastLogin, 0)
	}
	return &u, nil
}

// ListUsers returns all accounts ordered by username.
func (m *Manager) ListUsers() ([]*User, error) {
	rows, err := m.db.Query("SELECT username, is_admin, created_at, last_login FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var isAdmin int
		var createdAt, lastLogin int64
		if err := rows.Scan(&u.Username, &isAdmin, &createdAt, &lastLogin); err != nil {
			return nil, err
		}
		u.IsAdmin = isAdmin != 0
		u.CreatedAt = time.Unix(createdAt, 0)
		if lastLogin > 0 {
			u.LastLogin = time.Unix(lastLogin, 0)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered accounts.
func (m *Manager) CountUsers() (int, error) {
	var count int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
