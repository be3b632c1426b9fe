package session

import (
	"fmt"

	"github.com/acproject/local-ai-runtime/internal/config"
)

// New builds the Store named by cfg.Type, matching the teacher's
// "interface with factory by config string" pattern (spec §9) also used
// by internal/providers' registry.
func New(cfg config.SessionStoreConfig) (Store, error) {
	switch cfg.Type {
	case config.SessionStoreMemory, "":
		return NewMemoryStore(0), nil
	case config.SessionStoreFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("session: file-backed store requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case config.SessionStoreMinimemory:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("session: networked store requires an endpoint")
		}
		return NewKVStore(cfg.Endpoint, cfg.Password, cfg.DB), nil
	default:
		return nil, fmt.Errorf("session: unknown store type %q", cfg.Type)
	}
}
