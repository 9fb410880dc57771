// Provide application-wide logging with pre-defined log levels.
// It is just concerned with putting strings into the designated
// buffers and thus hides stuff like Panic() or Fatal().
//
// By default logs of level WARNING and ERROR are printed to stderr.
// A log file can additionally be attached, in which case every
// enabled level is mirrored into it.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

func init() {
	Initialize(LevelWarning, nil, nil)
}

type LogLevel int

const (
	LevelNone LogLevel = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

// ParseLevel maps a config string to a log level.
// Unknown strings yield LevelWarning, so a broken config
// still produces visible errors.
func ParseLevel(s string) LogLevel {
	switch s {
	case "none":
		return LevelNone
	case "error":
		return LevelError
	case "warning":
		return LevelWarning
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelWarning
	}
}

type logger struct {
	ErrorLogger   *log.Logger
	WarningLogger *log.Logger
	InfoLogger    *log.Logger
	DebugLogger   *log.Logger
}

var currentLogger logger
var currentLogFile *os.File

type nilWriter struct{}

func (ni nilWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

var nilLogger = log.New(nilWriter{}, "", 0)

// Initialize the application wide logger to a specific log level.
// This should ideally be called once at the beginning of the application.
// Custom writers can be specified as well: errWriter will be used for
// log levels ERROR and WARNING, logWriter for everything else.
// These may be set to nil, in which case they default to stdout and stderr.
func Initialize(l LogLevel, logWriter io.Writer, errWriter io.Writer) {
	if logWriter == nil {
		logWriter = os.Stdout
	}

	if errWriter == nil {
		errWriter = os.Stderr
	}

	out := logger{
		ErrorLogger:   nilLogger,
		WarningLogger: nilLogger,
		InfoLogger:    nilLogger,
		DebugLogger:   nilLogger,
	}

	if l >= LevelError {
		out.ErrorLogger = log.New(errWriter, "ERROR: ", log.LstdFlags)
	}

	if l >= LevelWarning {
		out.WarningLogger = log.New(errWriter, "WARNING: ", log.LstdFlags)
	}

	if l >= LevelInfo {
		out.InfoLogger = log.New(logWriter, "INFO: ", log.LstdFlags)
	}

	if l >= LevelDebug {
		out.DebugLogger = log.New(logWriter, "DEBUG: ", log.LstdFlags)
	}

	currentLogger = out
}

// InitializeWithFile behaves like [Initialize], but additionally
// mirrors all output into the log file at path, creating parent
// directories as needed. The file is appended to, never truncated.
// A previously attached log file is closed first.
func InitializeWithFile(l LogLevel, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("logging: can't create log directory: %v", err)
	}

	fi, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logging: can't open log file '%s': %v", path, err)
	}

	Close()
	currentLogFile = fi

	Initialize(l, io.MultiWriter(os.Stdout, fi), io.MultiWriter(os.Stderr, fi))
	return nil
}

// Close detaches and closes the log file, if one is attached.
// The console loggers stay functional.
func Close() {
	if currentLogFile != nil {
		currentLogFile.Close()
		currentLogFile = nil
	}
}

func Error(s string) {
	currentLogger.ErrorLogger.Print(s)
}

func Errorf(format string, v ...any) {
	currentLogger.ErrorLogger.Printf(format, v...)
}

func Warning(s string) {
	currentLogger.WarningLogger.Print(s)
}

func Warningf(format string, v ...any) {
	currentLogger.WarningLogger.Printf(format, v...)
}

func Info(s string) {
	currentLogger.InfoLogger.Print(s)
}

func Infof(format string, v ...any) {
	currentLogger.InfoLogger.Printf(format, v...)
}

func Debug(s string) {
	currentLogger.DebugLogger.Print(s)
}

func Debugf(format string, v ...any) {
	currentLogger.DebugLogger.Printf(format, v...)
}
