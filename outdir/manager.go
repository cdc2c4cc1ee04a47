package outdir

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/pithecene-io/torture/log"
)

// DefaultPrefix starts the name of every temporary output directory.
const DefaultPrefix = "torture-"

// Options configures a Manager.
type Options struct {
	// Root is the parent of temporary directories. Empty means os.TempDir.
	Root string
	// Prefix starts every temporary directory name (default DefaultPrefix).
	Prefix string
	// Provided, when set, is used for every suite instead of temporary
	// directories.
	Provided string
	// Logger receives disposal entries. If nil, nothing is logged.
	Logger *log.Logger
}

// Manager hands out one Dir per suite, shared by all work units of that
// suite. Units hold the directory through a Lease; the directory is
// disposed once every reserved unit has released or been skipped.
// Thread-safe for concurrent access.
type Manager struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	name    string
	dir     *Dir
	pending int
}

// NewManager creates a manager.
func NewManager(opts Options) *Manager {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Reserve announces n units for the suite at key. It must be called
// before the first Acquire or Skip for that key.
func (m *Manager) Reserve(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{name: filepath.Base(key)}
		m.entries[key] = e
	}
	e.pending += n
}

// Acquire returns a lease on the suite's directory, creating it on first
// use. On error the unit still counts as reserved and must be skipped.
func (m *Manager) Acquire(key string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.pending == 0 {
		return nil, fmt.Errorf("outdir: no reserved units for %s", key)
	}
	if e.dir == nil {
		dir, err := m.create(e.name)
		if err != nil {
			return nil, err
		}
		e.dir = dir
		m.logger.Debug("output directory created", map[string]any{
			"suite": e.name,
			"path":  dir.Path(),
			"kind":  dir.Kind().String(),
		})
	}
	return &Lease{m: m, key: key, dir: e.dir}, nil
}

// Skip gives up one reserved unit that never acquired (or failed to
// acquire) a lease.
func (m *Manager) Skip(key string) error {
	return m.release(key)
}

// Persistent returns the promoted directories keyed by suite key.
func (m *Manager) Persistent() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for key, e := range m.entries {
		if e.dir != nil && e.dir.Kind() == KindPersistent {
			out[key] = e.dir.Path()
		}
	}
	return out
}

func (m *Manager) create(name string) (*Dir, error) {
	if m.opts.Provided != "" {
		return Provided(m.opts.Provided)
	}
	return Temporary(m.opts.Root, m.opts.Prefix+sanitize(name)+"-")
}

func (m *Manager) release(key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || e.pending == 0 {
		m.mu.Unlock()
		return fmt.Errorf("outdir: release without reservation for %s", key)
	}
	e.pending--
	var dispose *Dir
	if e.pending == 0 {
		dispose = e.dir
	}
	m.mu.Unlock()

	if dispose == nil {
		return nil
	}
	if err := dispose.Cleanup(); err != nil {
		m.logger.Warn("failed to remove output directory", map[string]any{
			"path":  dispose.Path(),
			"error": err.Error(),
		})
		return err
	}
	m.logger.Debug("output directory disposed", map[string]any{
		"path": dispose.Path(),
		"kind": dispose.Kind().String(),
	})
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitize(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

// Lease is one unit's hold on a suite directory.
type Lease struct {
	m   *Manager
	key string
	dir *Dir

	once sync.Once
	err  error
}

// Path returns the directory path.
func (l *Lease) Path() string {
	return l.dir.Path()
}

// Dir returns the leased directory.
func (l *Lease) Dir() *Dir {
	return l.dir
}

// Promote keeps the directory after the last release.
func (l *Lease) Promote() {
	l.dir.Promote()
}

// Release ends the lease. Only the first call has an effect.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.err = l.m.release(l.key)
	})
	return l.err
}
