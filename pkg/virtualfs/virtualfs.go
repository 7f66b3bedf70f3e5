package virtualfs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

// Errors returned by filesystem operations
var (
	ErrNotFound     = errors.New("no such file or directory")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrExists       = errors.New("file exists")
	ErrAccessDenied = errors.New("access denied")
	ErrFileTooBig   = errors.New("file exceeds maximum size")
	ErrDirFull      = errors.New("directory entry limit reached")
)

// Entry describes a single directory entry as seen through the VFS.
type Entry struct {
	Name     string
	IsDir    bool
	Size     int64
	Modified time.Time
}

// VFS maps virtual slash-rooted paths onto a sandboxed directory of the
// host filesystem. Every resolution is clamped to the sandbox root, so a
// path like /../../etc/passwd lands back inside the sandbox.
type VFS struct {
	mu          sync.RWMutex
	root        string // absolute host path of the sandbox root
	maxFileSize int64  // bytes
	maxEntries  int    // per directory
}

// New creates a VFS rooted at the configured sandbox directory. The
// directory and a minimal standard layout are created when missing.
func New() (*VFS, error) {
	rootDir := configuration.GetString("FileSystem", "sandbox_root", "mukuvi-root")
	return NewAt(rootDir)
}

// NewAt creates a VFS rooted at the given host directory.
func NewAt(rootDir string) (*VFS, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}

	vfs := &VFS{
		root:        absRoot,
		maxFileSize: int64(configuration.GetInt("FileSystem", "max_file_size_kb", 1024)) * 1024,
		maxEntries:  configuration.GetInt("FileSystem", "max_files_per_directory", 200),
	}

	// Standard layout for a fresh sandbox
	for _, dir := range []string{"/home", "/etc", "/var", "/var/log", "/tmp", "/usr", "/usr/bin"} {
		hostPath := vfs.hostPath(dir)
		if err := os.MkdirAll(hostPath, 0755); err != nil {
			return nil, fmt.Errorf("creating standard directory %s: %w", dir, err)
		}
	}

	logger.Info(logger.AreaFileSystem, "virtual filesystem mounted at %s", absRoot)
	return vfs, nil
}

// Root returns the absolute host path of the sandbox root.
func (v *VFS) Root() string {
	return v.root
}

// Resolve turns a possibly relative virtual path into a normalized
// absolute virtual path. Relative paths are resolved against currentDir.
// The result never escapes the virtual root: leading .. segments are
// discarded by the lexical cleanup before any host path is built.
func (v *VFS) Resolve(currentDir, virtualPath string) string {
	p := strings.ReplaceAll(virtualPath, "\\", "/")
	if p == "" {
		p = "."
	}
	if !strings.HasPrefix(p, "/") {
		base := currentDir
		if base == "" {
			base = "/"
		}
		p = base + "/" + p
	}
	// path.Clean resolves . and .. lexically; because the input is
	// absolute the result can never climb above /.
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// hostPath maps a normalized virtual path onto the host filesystem.
// Callers must pass the output of Resolve.
func (v *VFS) hostPath(virtualPath string) string {
	return filepath.Join(v.root, filepath.FromSlash(strings.TrimPrefix(virtualPath, "/")))
}

// Exists reports whether a virtual path refers to an existing file or directory.
func (v *VFS) Exists(currentDir, virtualPath string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, err := os.Stat(v.hostPath(v.Resolve(currentDir, virtualPath)))
	return err == nil
}

// Stat returns the entry metadata for a virtual path.
func (v *VFS) Stat(currentDir, virtualPath string) (Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	resolved := v.Resolve(currentDir, virtualPath)
	info, err := os.Stat(v.hostPath(resolved))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return Entry{}, err
	}
	return Entry{Name: path.Base(resolved), IsDir: info.IsDir(), Size: info.Size(), Modified: info.ModTime()}, nil
}

// List returns the entries of a directory, sorted by name.
func (v *VFS) List(currentDir, virtualPath string) ([]Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	resolved := v.Resolve(currentDir, virtualPath)
	hostPath := v.hostPath(resolved)

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", virtualPath, ErrNotDirectory)
	}

	dirEntries, err := os.ReadDir(hostPath)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entry := Entry{Name: de.Name(), IsDir: de.IsDir()}
		if fi, err := de.Info(); err == nil {
			entry.Size = fi.Size()
			entry.Modified = fi.ModTime()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read returns the content of a file.
func (v *VFS) Read(currentDir, virtualPath string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	resolved := v.Resolve(currentDir, virtualPath)
	hostPath := v.hostPath(resolved)

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", virtualPath, ErrIsDirectory)
	}

	data, err := os.ReadFile(hostPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write creates or replaces a file with the given content. Missing
// parent directories are created.
func (v *VFS) Write(currentDir, virtualPath, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if int64(len(content)) > v.maxFileSize {
		return fmt.Errorf("%s: %w", virtualPath, ErrFileTooBig)
	}

	resolved := v.Resolve(currentDir, virtualPath)
	hostPath := v.hostPath(resolved)

	parent := filepath.Dir(hostPath)
	if parentInfo, err := os.Stat(parent); err == nil && !parentInfo.IsDir() {
		return fmt.Errorf("%s: %w", path.Dir(resolved), ErrNotDirectory)
	}

	if info, err := os.Stat(hostPath); err == nil {
		// Overwriting an existing directory is never allowed
		if info.IsDir() {
			return fmt.Errorf("%s: %w", virtualPath, ErrIsDirectory)
		}
	} else if os.IsNotExist(err) {
		// The entry limit applies only to new files
		if entries, readErr := os.ReadDir(parent); readErr == nil && len(entries) >= v.maxEntries {
			return fmt.Errorf("%s: %w", path.Dir(resolved), ErrDirFull)
		}
	}

	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(hostPath, []byte(content), 0644); err != nil {
		return err
	}
	logger.Debug(logger.AreaFileSystem, "wrote %d bytes to %s", len(content), resolved)
	return nil
}

// Append appends content to a file, creating it and missing parent
// directories when needed. The whole operation runs under one write lock
// so concurrent appends never lose each other's data.
func (v *VFS) Append(currentDir, virtualPath, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	resolved := v.Resolve(currentDir, virtualPath)
	hostPath := v.hostPath(resolved)

	var existingSize int64
	if info, err := os.Stat(hostPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s: %w", virtualPath, ErrIsDirectory)
		}
		existingSize = info.Size()
	} else if os.IsNotExist(err) {
		parent := filepath.Dir(hostPath)
		if entries, readErr := os.ReadDir(parent); readErr == nil && len(entries) >= v.maxEntries {
			return fmt.Errorf("%s: %w", path.Dir(resolved), ErrDirFull)
		}
		if mkErr := os.MkdirAll(parent, 0755); mkErr != nil {
			return mkErr
		}
	} else {
		return err
	}

	if existingSize+int64(len(content)) > v.maxFileSize {
		return fmt.Errorf("%s: %w", virtualPath, ErrFileTooBig)
	}

	f, err := os.OpenFile(hostPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Mkdir creates a directory. Creating a directory that already exists is
// not an error (idempotent, mirrors mkdir -p for a single level).
func (v *VFS) Mkdir(currentDir, virtualPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	resolved := v.Resolve(currentDir, virtualPath)
	hostPath := v.hostPath(resolved)

	if info, err := os.Stat(hostPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s: %w", virtualPath, ErrExists)
	}

	parent := filepath.Dir(hostPath)
	if entries, err := os.ReadDir(parent); err == nil && len(entries) >= v.maxEntries {
		return fmt.Errorf("%s: %w", path.Dir(resolved), ErrDirFull)
	}

	if err := os.MkdirAll(hostPath, 0755); err != nil {
		return err
	}
	logger.Debug(logger.AreaFileSystem, "created directory %s", resolved)
	return nil
}

// Remove deletes a file or an empty directory. The virtual root itself
// cannot be removed.
func (v *VFS) Remove(currentDir, virtualPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	resolved := v.Resolve(currentDir, virtualPath)
	if resolved == "/" {
		return fmt.Errorf("/: %w", ErrAccessDenied)
	}
	hostPath := v.hostPath(resolved)

	if _, err := os.Stat(hostPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return err
	}

	if err := os.Remove(hostPath); err != nil {
		return err
	}
	logger.Debug(logger.AreaFileSystem, "removed %s", resolved)
	return nil
}

// RemoveAll deletes a file or directory tree below the virtual root.
func (v *VFS) RemoveAll(currentDir, virtualPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	resolved := v.Resolve(currentDir, virtualPath)
	if resolved == "/" {
		return fmt.Errorf("/: %w", ErrAccessDenied)
	}
	hostPath := v.hostPath(resolved)

	if _, err := os.Stat(hostPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return err
	}

	return os.RemoveAll(hostPath)
}

// ChangeDirectory validates a directory change and returns the new
// normalized virtual path. The target must exist and be a directory.
func (v *VFS) ChangeDirectory(currentDir, virtualPath string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	resolved := v.Resolve(currentDir, virtualPath)
	info, err := os.Stat(v.hostPath(resolved))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", virtualPath, ErrNotFound)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", virtualPath, ErrNotDirectory)
	}
	return resolved, nil
}

// EnsureHomeDirectory creates /home/<username> when missing and returns
// its virtual path.
func (v *VFS) EnsureHomeDirectory(username string) (string, error) {
	home := "/home/" + username
	if err := v.Mkdir("/", home); err != nil {
		return "", err
	}
	return home, nil
}
