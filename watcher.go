package execguard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// snapshot pairs a threat database with its compiled rule set. Snapshots
// are immutable; the watcher swaps the current one atomically.
type snapshot struct {
	db    *ThreatDatabase
	rules *RuleSet
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// ThreatDBPath is the CSV threat database loaded at start and on
	// reload.
	ThreatDBPath string

	// OpenSource overrides ThreatDBPath, supplying the tabular source
	// directly. Used by tests and by callers with non-file sources.
	OpenSource func() (io.ReadCloser, error)

	// Compile controls policy compilation on every (re)load.
	Compile CompileConfig

	// Policy, when non-nil, substitutes a precompiled rule set for the
	// one derived from the tabular source. Reload recompiles from the
	// source only when Policy is nil.
	Policy *RuleSet

	// ReloadSchedule is an optional cron expression (e.g. "@every 5m")
	// that triggers periodic reloads off the read path.
	ReloadSchedule string

	// Logger receives structured reload and classification diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher owns the live (ThreatDatabase, RuleSet) snapshot and serves
// concurrent classification and risk queries. Readers never block and never
// observe a torn snapshot; reload builds the replacement off the read path
// and publishes it with a single atomic swap.
type Watcher struct {
	cfg    WatcherConfig
	cur    atomic.Pointer[snapshot]
	reload singleflight.Group
	// reloadMu serializes rebuilds across sources: snapshots publish in
	// lock order, so an earlier reload can never land on top of a newer
	// snapshot.
	reloadMu sync.Mutex
	sched    *cron.Cron
	closed   atomic.Bool
	logger   *slog.Logger
}

// NewWatcher loads the threat database, compiles the rule set, and returns
// a watcher serving that snapshot. If cfg.ReloadSchedule is set, a
// background scheduler reloads on that cadence.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{cfg: cfg, logger: logger}

	snap, err := w.build("")
	if err != nil {
		return nil, err
	}
	w.cur.Store(snap)

	if cfg.ReloadSchedule != "" {
		w.sched = cron.New()
		_, err := w.sched.AddFunc(cfg.ReloadSchedule, func() {
			if err := w.Reload(context.Background()); err != nil {
				logger.Warn("scheduled policy reload failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid reload schedule %q: %w", cfg.ReloadSchedule, err)
		}
		w.sched.Start()
	}

	return w, nil
}

// build loads and compiles a fresh snapshot without touching the published
// one. An empty path selects the configured source; a non-empty path is an
// explicit override and wins even when OpenSource is set.
func (w *Watcher) build(path string) (*snapshot, error) {
	var (
		db  *ThreatDatabase
		err error
	)
	switch {
	case path != "":
		db, err = LoadThreatDBFile(path)
	case w.cfg.Policy != nil && w.cfg.OpenSource == nil && w.cfg.ThreatDBPath == "":
		// Precompiled policy with no tabular source: risk queries see an
		// empty database.
		return &snapshot{db: &ThreatDatabase{}, rules: w.cfg.Policy}, nil
	case w.cfg.OpenSource != nil:
		src, oerr := w.cfg.OpenSource()
		if oerr != nil {
			return nil, fmt.Errorf("opening threat source: %w", oerr)
		}
		db, err = LoadThreatDB(src)
		src.Close()
	default:
		db, err = LoadThreatDBFile(w.cfg.ThreatDBPath)
	}
	if err != nil {
		return nil, err
	}

	rules := w.cfg.Policy
	if rules == nil {
		rules, err = Compile(db, w.cfg.Compile)
		if err != nil {
			return nil, err
		}
	}
	return &snapshot{db: db, rules: rules}, nil
}

// snapshotNow returns the current snapshot, or ErrWatcherClosed.
func (w *Watcher) snapshotNow() (*snapshot, error) {
	if w.closed.Load() {
		return nil, ErrWatcherClosed
	}
	return w.cur.Load(), nil
}

// Classify tokenizes argv and evaluates it against the live rule set.
// workdir, when non-empty, resolves a relative program path before rule
// lookup. Classify is a pure read of an immutable snapshot and is safe to
// call concurrently without locking.
func (w *Watcher) Classify(argv []string, workdir string) (Classification, error) {
	snap, err := w.snapshotNow()
	if err != nil {
		return Classification{}, err
	}
	cmd, err := Tokenize(argv)
	if err != nil {
		return Classification{}, err
	}
	if workdir != "" && !filepath.IsAbs(cmd.Program) && filepath.Base(cmd.Program) != cmd.Program {
		cmd.Program = filepath.Join(workdir, cmd.Program)
	}
	return snap.rules.Classify(cmd), nil
}

// RiskScore aggregates risk for (shell, command, argv) against the live
// threat database.
func (w *Watcher) RiskScore(shell Shell, command string, argv []string) (RiskVector, error) {
	snap, err := w.snapshotNow()
	if err != nil {
		return RiskVector{}, err
	}
	return ScoreRisk(snap.db, shell, command, argv)
}

// RuleSet returns the currently published rule set. A caller holding the
// returned value keeps classifying against that snapshot even if a reload
// publishes a newer one mid-flight.
func (w *Watcher) RuleSet() (*RuleSet, error) {
	snap, err := w.snapshotNow()
	if err != nil {
		return nil, err
	}
	return snap.rules, nil
}

// Reload rebuilds the snapshot from the configured source and publishes it
// atomically. Concurrent Reload calls coalesce into one in-flight rebuild;
// rebuilds from different sources serialize, and readers are never
// blocked. On failure the previous snapshot stays published: the watcher
// never runs with a partial policy.
func (w *Watcher) Reload(ctx context.Context) error {
	return w.reloadFrom(ctx, "")
}

// ReloadFrom is Reload against an alternate tabular source path, which
// wins over any configured source. The configuration is untouched; later
// Reload calls use it again.
func (w *Watcher) ReloadFrom(ctx context.Context, path string) error {
	return w.reloadFrom(ctx, path)
}

// reloadFrom rebuilds and publishes; an empty path means the configured
// source.
func (w *Watcher) reloadFrom(ctx context.Context, path string) error {
	if w.closed.Load() {
		return ErrWatcherClosed
	}
	source := path
	if source == "" {
		source = w.cfg.ThreatDBPath
	}
	_, err, _ := w.reload.Do(path, func() (any, error) {
		w.reloadMu.Lock()
		defer w.reloadMu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := w.build(path)
		if err != nil {
			w.logger.Warn("policy reload failed, keeping previous snapshot", "source", source, "error", err)
			return nil, err
		}
		w.cur.Store(snap)
		w.logger.Info("policy reloaded", "source", source, "rules", snap.rules.Len())
		return nil, nil
	})
	return err
}

// Close stops the reload scheduler and marks the watcher closed. Subsequent
// calls return nil; reads after Close fail with ErrWatcherClosed.
func (w *Watcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if w.sched != nil {
		w.sched.Stop()
	}
	return nil
}
