// Package logger provides standardized logging utilities for the lpirc
// toolchain: LPIR parsing/verification, register allocation, code
// generation, ELF emission, and emulation.
package logger

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Global logger instance
var defaultLogger = log.StandardLogger()

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level     LogLevel
	Format    string // "text" or "json"
	Output    io.Writer
	AddSource bool
	LogFile   string
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	l := log.New()
	l.SetOutput(output)
	l.SetLevel(toLogrusLevel(cfg.Level))
	l.SetReportCaller(cfg.AddSource)
	if cfg.Format == "json" {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	defaultLogger = l
	return nil
}

// InitDev initializes logging for development (debug level, text format)
func InitDev() {
	_ = Init(Config{
		Level:     LevelDebug,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: true,
	})
}

// InitProd initializes logging for production (info level, json format)
func InitProd(logDir string) error {
	logPath := filepath.Join(logDir, "lpirc.log")
	return Init(Config{
		Level:   LevelInfo,
		Format:  "json",
		LogFile: logPath,
	})
}

func toLogrusLevel(level LogLevel) log.Level {
	switch level {
	case LevelDebug:
		return log.DebugLevel
	case LevelInfo:
		return log.InfoLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs a debug message
func Debug(msg string, fields ...log.Fields) {
	entry(fields...).Debug(msg)
}

// Info logs an info message
func Info(msg string, fields ...log.Fields) {
	entry(fields...).Info(msg)
}

// Warn logs a warning message
func Warn(msg string, fields ...log.Fields) {
	entry(fields...).Warn(msg)
}

// Error logs an error message
func Error(msg string, fields ...log.Fields) {
	entry(fields...).Error(msg)
}

// With returns a logger entry carrying the given fields
func With(fields log.Fields) *log.Entry {
	return defaultLogger.WithFields(fields)
}

func entry(fields ...log.Fields) *log.Entry {
	if len(fields) == 0 {
		return log.NewEntry(defaultLogger)
	}
	return defaultLogger.WithFields(fields[0])
}

// Toolchain-specific logging helpers

// LogPhase logs the start of a compilation phase
func LogPhase(phase string) {
	Info("starting phase", log.Fields{"phase": phase})
}

// LogPhaseComplete logs the completion of a compilation phase
func LogPhaseComplete(phase string) {
	Info("phase complete", log.Fields{"phase": phase})
}

// LogParsing logs LPIR text parsing activity
func LogParsing(module string, funcCount int) {
	Debug("parsing complete", log.Fields{"module": module, "functions": funcCount})
}

// LogVerification logs module verification
func LogVerification(module string, funcCount int) {
	Debug("verification complete", log.Fields{"module": module, "functions": funcCount})
}

// LogRegalloc logs register allocation for one function
func LogRegalloc(funcName string, spillCount int) {
	Debug("register allocation complete", log.Fields{"function": funcName, "spills": spillCount})
}

// LogCodeGen logs code generation
func LogCodeGen(arch string, funcName string, instructionCount int) {
	Debug("code generation complete",
		log.Fields{"arch": arch, "function": funcName, "instructions": instructionCount})
}

// LogELFEmission logs ELF image emission
func LogELFEmission(outputFile string, size int) {
	Info("elf image written", log.Fields{"output": outputFile, "bytes": size})
}

// LogEmulatorRun logs an emulator run's outcome
func LogEmulatorRun(image string, cycles uint64, halted bool) {
	Info("emulation finished", log.Fields{"image": image, "cycles": cycles, "halted": halted})
}

// LogError logs a compilation error
func LogError(phase string, detail string) {
	Error("compilation error", log.Fields{"phase": phase, "detail": detail})
}

// LogWarning logs a compilation warning
func LogWarning(phase string, detail string) {
	Warn("compilation warning", log.Fields{"phase": phase, "detail": detail})
}

// LogCompilerStart logs compiler startup
func LogCompilerStart(args []string) {
	Info("lpirc starting", log.Fields{"args": args})
}

// LogCompilerComplete logs compiler completion
func LogCompilerComplete(success bool, duration string) {
	if success {
		Info("compilation successful", log.Fields{"duration": duration})
	} else {
		Error("compilation failed", log.Fields{"duration": duration})
	}
}
