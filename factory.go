package snapshelf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/snapshelf/storage"
	"github.com/poiesic/snapshelf/storage/badger"
	boltslot "github.com/poiesic/snapshelf/storage/bolt"
	"github.com/poiesic/snapshelf/storage/kv"
	redisslot "github.com/poiesic/snapshelf/storage/redis"
	"github.com/poiesic/snapshelf/storage/remote"
)

// Kind selects which storage chain a Store uses.
type Kind string

const (
	// KindEphemeral stores records in the key-value slot only.
	KindEphemeral Kind = "ephemeral"
	// KindTransactional stores records in badger, falling back to the slot.
	KindTransactional Kind = "transactional"
	// KindRemote stores records with the HTTP service, falling back to the slot.
	KindRemote Kind = "remote"
)

// ErrUnknownKind is returned by ParseKind for an unrecognized name.
var ErrUnknownKind = errors.New("unknown backend kind")

var kindAliases = map[string]Kind{
	"ephemeral":     KindEphemeral,
	"localstorage":  KindEphemeral,
	"transactional": KindTransactional,
	"indexeddb":     KindTransactional,
	"remote":        KindRemote,
	"api":           KindRemote,
}

// ParseKind resolves a backend name. Matching is case-insensitive and
// accepts the aliases localStorage, indexedDB and api. An empty name means
// KindTransactional.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return KindTransactional, nil
	}
	if kind, ok := kindAliases[name]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// NewBackend builds the storage chain described by cfg:
//
//	ephemeral      kv
//	transactional  badger, kv
//	remote         remote, kv
//
// Every call returns a fresh chain that the caller must close.
func NewBackend(cfg *Config) (*storage.Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slot, err := newSlot(cfg)
	if err != nil {
		return nil, err
	}
	local := kv.New(slot, kv.WithCap(cfg.Cap), kv.WithLogger(cfg.Logger))

	var backends []storage.Backend
	switch cfg.Backend {
	case KindEphemeral:
		backends = []storage.Backend{local}
	case KindTransactional:
		primary := badger.New(
			badger.WithDir(cfg.DataDir),
			badger.WithInMemory(cfg.InMemory),
			badger.WithCap(cfg.Cap),
			badger.WithLogger(cfg.Logger),
		)
		backends = []storage.Backend{primary, local}
	case KindRemote:
		primary, err := remote.New(cfg.Remote.URL,
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithRetry(cfg.Remote.RetryAttempts, cfg.Remote.RetryDelay),
			remote.WithLogger(cfg.Logger),
		)
		if err != nil {
			local.Close()
			return nil, err
		}
		backends = []storage.Backend{primary, local}
	}

	// Registered last so a failed build leaves the registry untouched.
	var metrics *storage.Metrics
	if cfg.Registerer != nil {
		if metrics, err = storage.NewMetrics(cfg.Registerer); err != nil {
			closeAll(backends)
			return nil, fmt.Errorf("failed to register storage metrics: %w", err)
		}
	}

	cfg.Logger.Debug("storage chain configured", "backend", cfg.Backend, "slot", cfg.Slot.Kind, "cap", cfg.Cap)
	return storage.NewChain(backends, storage.WithLogger(cfg.Logger), storage.WithMetrics(metrics))
}

func closeAll(backends []storage.Backend) {
	for _, b := range backends {
		b.Close()
	}
}

func newSlot(cfg *Config) (kv.Slot, error) {
	switch cfg.Slot.Kind {
	case SlotBolt:
		slot, err := boltslot.Open(cfg.Slot.Path, "", cfg.Slot.Key)
		if err != nil {
			return nil, err
		}
		return slot, nil
	case SlotRedis:
		slot, err := redisslot.NewSlotFromURL(cfg.Slot.RedisURL, cfg.Slot.Key)
		if err != nil {
			return nil, err
		}
		return slot, nil
	default:
		return kv.NewMemorySlot(cfg.Slot.Quota), nil
	}
}
