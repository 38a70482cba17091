// Package logging provides categorized zap logging for DreamSight.
// Every subsystem gets a named child logger so log lines can be filtered
// per concern (api, analysis, knowledge, oracle, store, boot).
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the service.
const (
	CategoryBoot      = "boot"
	CategoryAPI       = "api"
	CategoryAnalysis  = "analysis"
	CategoryKnowledge = "knowledge"
	CategoryOracle    = "oracle"
	CategoryStore     = "store"
	CategoryDreambook = "dreambook"
	CategoryCache     = "cache"
	CategoryQuota     = "quota"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the root logger. format is "json" or "console"; level is one of
// debug/info/warn/error. Safe to call more than once; the last call wins.
func Init(level, format string) error {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// L returns the root logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a child logger for the given category.
func Named(category string) *zap.Logger {
	return L().Named(category)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = L().Sync()
}

// SetLogger replaces the root logger. Tests use this to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	root = l
}
