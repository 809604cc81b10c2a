package pageclient

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fitmirror/fitmirror/internal/logging"
)

// BackendConstructor constructs a PageClient given the config and logger.
type BackendConstructor func(cfg Config, logger logging.Logger) (PageClient, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the
// previous constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// New constructs the configured PageClient backend. It returns an error if
// the named backend has not been registered.
func New(cfg Config, logger logging.Logger) (PageClient, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendNetHTTP
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("pageclient backend %q not registered: available backends=%v", backend, ListBackends())
	}

	pc, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct pageclient backend %q: %w", backend, err)
	}
	if pc == nil {
		return nil, errors.New("pageclient constructor returned nil")
	}
	return pc, nil
}

// ListBackends returns the list of registered backend names.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

func init() {
	RegisterBackend(BackendNetHTTP, func(cfg Config, logger logging.Logger) (PageClient, error) {
		return NewNetHTTPClient(cfg, logger, nil)
	})
	RegisterBackend(BackendChromedp, func(cfg Config, logger logging.Logger) (PageClient, error) {
		return NewChromedpClient(cfg, logger)
	})
}
