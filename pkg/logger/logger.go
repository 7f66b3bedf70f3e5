package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
)

// LogLevel defines the available log levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// LogArea defines the available log areas
type LogArea string

const (
	AreaKernel     LogArea = "kernel"
	AreaFileSystem LogArea = "filesystem"
	AreaProcess    LogArea = "process"
	AreaService    LogArea = "service"
	AreaShell      LogArea = "shell"
	AreaGateway    LogArea = "gateway"
	AreaAuth       LogArea = "auth"
	AreaDatabase   LogArea = "database"
	AreaSession    LogArea = "session"
	AreaConfig     LogArea = "config"
	AreaGeneral    LogArea = "general"
)

// Logger is the main logging system
type Logger struct {
	enabled       int32              // atomic bool - performance critical
	level         int32              // atomic LogLevel
	areaEnabled   map[LogArea]*int32 // atomic bools per area
	file          *os.File
	mutex         sync.RWMutex
	logPath       string
	maxSizeMB     int64
	rotationCount int
	currentSize   int64
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize sets up the global logging system
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger()
	})
	return err
}

// newLogger creates a new logger
func newLogger() (*Logger, error) {
	l := &Logger{
		areaEnabled: make(map[LogArea]*int32),
	}
	// Initialize all areas with atomic ints
	areas := []LogArea{
		AreaKernel, AreaFileSystem, AreaProcess, AreaService, AreaShell,
		AreaGateway, AreaAuth, AreaDatabase, AreaSession, AreaConfig,
		AreaGeneral,
	}

	for _, area := range areas {
		l.areaEnabled[area] = new(int32)
	}

	// Load configuration
	if err := l.loadConfig(); err != nil {
		return nil, err
	}

	// Open log file
	if err := l.openLogFile(); err != nil {
		return nil, err
	}

	return l, nil
}

// loadConfig loads the logging configuration
func (l *Logger) loadConfig() error {
	// Base configuration
	enabled := configuration.GetBool("Debug", "enable_debug_logging", true)
	atomic.StoreInt32(&l.enabled, boolToInt32(enabled))

	levelStr := configuration.GetString("Debug", "log_level", "INFO")
	level := parseLogLevel(levelStr)
	atomic.StoreInt32(&l.level, int32(level))

	l.logPath = configuration.GetString("Debug", "log_file", "mukuvi.log")
	l.maxSizeMB = int64(configuration.GetInt("Debug", "max_log_size_mb", 10))
	l.rotationCount = configuration.GetInt("Debug", "log_rotation_count", 3)

	// Area-specific configuration
	for area, atomicBool := range l.areaEnabled {
		configKey := fmt.Sprintf("log_%s", string(area))
		enabled := configuration.GetBool("Debug", configKey, false)
		atomic.StoreInt32(atomicBool, boolToInt32(enabled))
	}

	return nil
}

// openLogFile opens the log file
func (l *Logger) openLogFile() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Close the old file if one is open
	if l.file != nil {
		l.file.Close()
	}

	// Create the directory if needed
	dir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Open the new file
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	l.file = file

	// Determine the current file size
	if stat, err := file.Stat(); err == nil {
		l.currentSize = stat.Size()
	}

	return nil
}

// rotateLogFile rotates the log file when it grows too large
func (l *Logger) rotateLogFile() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	// Rotate existing files
	for i := l.rotationCount - 1; i >= 1; i-- {
		oldName := fmt.Sprintf("%s.%d", l.logPath, i)
		newName := fmt.Sprintf("%s.%d", l.logPath, i+1)

		if i == l.rotationCount-1 {
			// Delete the oldest file
			os.Remove(newName)
		}

		os.Rename(oldName, newName)
	}

	// Move the current file to .1
	os.Rename(l.logPath, l.logPath+".1")

	// Open a fresh file
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	l.file = file
	l.currentSize = 0

	return nil
}

// isEnabled checks whether logging is enabled (atomic, very fast)
func (l *Logger) isEnabled() bool {
	return atomic.LoadInt32(&l.enabled) != 0
}

// isAreaEnabled checks whether an area is enabled (atomic, very fast)
func (l *Logger) isAreaEnabled(area LogArea) bool {
	if atomicBool, exists := l.areaEnabled[area]; exists {
		return atomic.LoadInt32(atomicBool) != 0
	}
	return false
}

// shouldLog checks whether a log entry should be written
func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	// Fast atomic checks first
	if !l.isEnabled() {
		return false
	}

	if atomic.LoadInt32(&l.level) > int32(level) {
		return false
	}

	return l.isAreaEnabled(area)
}

// writeLog writes the log entry
func (l *Logger) writeLog(level LogLevel, area LogArea, format string, args ...interface{}) {
	// Format the message
	message := fmt.Sprintf(format, args...)

	// Gather caller info
	_, file, line, _ := runtime.Caller(3)
	filename := filepath.Base(file)

	// Build the log entry
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	logEntry := fmt.Sprintf("[%s] %s [%s:%d] [%s] %s\n",
		timestamp,
		logLevelNames[level],
		filename,
		line,
		strings.ToUpper(string(area)),
		message)

	// Write to file
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file != nil {
		n, err := l.file.WriteString(logEntry)
		if err == nil {
			l.currentSize += int64(n)
			l.file.Sync() // flush to disk immediately

			// Check whether rotation is needed
			if l.currentSize > l.maxSizeMB*1024*1024 {
				l.rotateLogFile()
			}
		}
	}

	// Mirror important messages to the standard log
	if level >= WARN {
		log.Printf("[%s] [%s] %s", logLevelNames[level], strings.ToUpper(string(area)), message)
	}
}

// Public logging functions for the different areas and levels

// Debug writes debug logs
func Debug(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(DEBUG, area) {
		globalLogger.writeLog(DEBUG, area, format, args...)
	}
}

// Info writes info logs
func Info(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(INFO, area) {
		globalLogger.writeLog(INFO, area, format, args...)
	}
}

// Warn writes warning logs
func Warn(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(WARN, area) {
		globalLogger.writeLog(WARN, area, format, args...)
	}
}

// Error writes error logs
func Error(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(ERROR, area) {
		globalLogger.writeLog(ERROR, area, format, args...)
	}
}

// Fatal writes fatal logs and terminates the program
func Fatal(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.writeLog(FATAL, area, format, args...)
	}
	log.Fatalf("[FATAL] [%s] %s", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
}

// Convenience functions for frequently used areas

// Kernel logging
func KernelDebug(format string, args ...interface{}) { Debug(AreaKernel, format, args...) }
func KernelInfo(format string, args ...interface{})  { Info(AreaKernel, format, args...) }
func KernelWarn(format string, args ...interface{})  { Warn(AreaKernel, format, args...) }
func KernelError(format string, args ...interface{}) { Error(AreaKernel, format, args...) }

// Auth logging
func AuthDebug(format string, args ...interface{}) { Debug(AreaAuth, format, args...) }
func AuthInfo(format string, args ...interface{})  { Info(AreaAuth, format, args...) }
func AuthWarn(format string, args ...interface{})  { Warn(AreaAuth, format, args...) }
func AuthError(format string, args ...interface{}) { Error(AreaAuth, format, args...) }

// Gateway logging
func GatewayDebug(format string, args ...interface{}) { Debug(AreaGateway, format, args...) }
func GatewayInfo(format string, args ...interface{})  { Info(AreaGateway, format, args...) }
func GatewayWarn(format string, args ...interface{})  { Warn(AreaGateway, format, args...) }
func GatewayError(format string, args ...interface{}) { Error(AreaGateway, format, args...) }

// Config logging
func ConfigDebug(format string, args ...interface{}) { Debug(AreaConfig, format, args...) }
func ConfigInfo(format string, args ...interface{})  { Info(AreaConfig, format, args...) }
func ConfigWarn(format string, args ...interface{})  { Warn(AreaConfig, format, args...) }
func ConfigError(format string, args ...interface{}) { Error(AreaConfig, format, args...) }

// ReloadConfig reloads the logging configuration
func ReloadConfig() error {
	if globalLogger != nil {
		return globalLogger.loadConfig()
	}
	return fmt.Errorf("logger not initialized")
}

// EnableArea enables logging for an area
func EnableArea(area LogArea) {
	if globalLogger != nil {
		if atomicBool, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(atomicBool, 1)
		}
	}
}

// DisableArea disables logging for an area
func DisableArea(area LogArea) {
	if globalLogger != nil {
		if atomicBool, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(atomicBool, 0)
		}
	}
}

// GetAreaStatus returns the status of an area
func GetAreaStatus(area LogArea) bool {
	if globalLogger != nil {
		return globalLogger.isAreaEnabled(area)
	}
	return false
}

// ListAreas returns all available areas
func ListAreas() []LogArea {
	return []LogArea{
		AreaKernel, AreaFileSystem, AreaProcess, AreaService, AreaShell,
		AreaGateway, AreaAuth, AreaDatabase, AreaSession, AreaConfig,
		AreaGeneral,
	}
}

// Helper functions
func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Close shuts down the logging system
func Close() {
	if globalLogger != nil {
		globalLogger.mutex.Lock()
		defer globalLogger.mutex.Unlock()

		if globalLogger.file != nil {
			globalLogger.file.Close()
			globalLogger.file = nil
		}
	}
}
