package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/snapshelf/storage"
)

// State is the lifecycle of the database handle.
type State int

const (
	// StateClosed means no handle is held. The next operation opens one.
	StateClosed State = iota
	// StateOpening means an operation is opening the handle.
	StateOpening
	// StateOpen means the handle is ready.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the transactional backend. It stores each record under its own
// key and enforces the retention cap inside the transaction that saves.
// The database is opened lazily by the first operation.
type Backend struct {
	dir      string
	inMemory bool
	cap      int
	logger   *slog.Logger

	stateMu  sync.Mutex
	state    State
	db       *badger.DB
	shutdown bool

	// Serializes write transactions within the process.
	writeMu sync.Mutex
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithDir sets the directory holding the database files.
// It is created on first open if missing.
func WithDir(dir string) Option {
	return func(b *Backend) {
		b.dir = dir
	}
}

// WithInMemory keeps the database in memory only.
func WithInMemory(inMemory bool) Option {
	return func(b *Backend) {
		b.inMemory = inMemory
	}
}

// WithCap sets how many records are retained.
// Default is storage.DefaultCap.
func WithCap(cap int) Option {
	return func(b *Backend) {
		b.cap = storage.NormalizeCap(cap)
	}
}

// WithLogger sets a custom logger. Badger's own log output goes through it too.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// New creates a transactional backend. No file is touched until the first
// operation.
func New(opts ...Option) *Backend {
	b := &Backend{
		cap:    storage.DefaultCap,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "badger".
func (b *Backend) Name() string {
	return "badger"
}

// State reports the handle's lifecycle state.
func (b *Backend) State() State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

// Close closes the database. Later operations fail with
// storage.ErrMediumUnavailable. Closing twice is a no-op.
func (b *Backend) Close() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	b.shutdown = true
	if b.db == nil {
		return nil
	}
	db := b.db
	b.db = nil
	b.state = StateClosed
	return db.Close()
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// handle returns the open database, opening it if needed.
// A failed open leaves the backend Closed so the next call retries.
func (b *Backend) handle() (*badger.DB, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.shutdown {
		return nil, fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, storage.ErrStorageClosed)
	}
	if b.state == StateOpen && !b.db.IsClosed() {
		return b.db, nil
	}

	b.state = StateOpening
	db, err := openDB(b.dir, b.inMemory, b.logger)
	if err != nil {
		b.state = StateClosed
		b.db = nil
		b.logger.Error("failed to open badger database", "dir", b.dir, "err", err)
		return nil, fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, err)
	}
	b.db = db
	b.state = StateOpen
	return db, nil
}

// openDB opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func openDB(dir string, inMemory bool, logger *slog.Logger) (*badger.DB, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if dir == "" {
			return nil, errors.New("no database directory configured")
		}
		info, err := os.Stat(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(dir); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	return badger.Open(opts)
}

// withTx executes fn within one transaction on the open database.
// If isWrite is true, creates a read-write transaction and holds the write
// lock. fn must commit write transactions itself; the transaction is
// discarded when fn returns.
func (b *Backend) withTx(ctx context.Context, fn func(tx *badger.Txn) error, isWrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := b.handle()
	if err != nil {
		return err
	}
	if isWrite {
		b.writeMu.Lock()
		defer b.writeMu.Unlock()
	}

	tx := db.NewTransaction(isWrite)
	defer tx.Discard()
	return mapError(fn(tx))
}

// mapError sorts badger failures into the storage error taxonomy.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrMediumUnavailable),
		errors.Is(err, storage.ErrTransactionFailed),
		errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
}
