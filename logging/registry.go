package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks named loggers so their levels can be changed while they are in use.
type Registry struct {
	mu      sync.RWMutex
	loggers map[string]Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger)}
}

// Register adds logger under name, replacing any logger already there.
func (lr *Registry) Register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
}

// Sublogger creates a sublogger of parent and registers it under subname.
func (lr *Registry) Sublogger(parent Logger, subname string) Logger {
	logger := parent.Sublogger(subname)
	lr.Register(subname, logger)
	return logger
}

// LoggerNamed returns logger with specified name if exists.
func (lr *Registry) LoggerNamed(name string) (logger Logger, ok bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok = lr.loggers[name]
	return
}

// UpdateLoggerLevel assigns level to the named logger.
func (lr *Registry) UpdateLoggerLevel(name string, level Level) error {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	if !ok {
		return fmt.Errorf("logger named %s not recognized", name)
	}
	logger.SetLevel(level)
	return nil
}

// SetLevel assigns level to every registered logger.
func (lr *Registry) SetLevel(level Level) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	for _, logger := range lr.loggers {
		logger.SetLevel(level)
	}
}

// Names returns the registered names in sorted order.
func (lr *Registry) Names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
