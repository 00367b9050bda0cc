// Package daemon runs a mirror continuously.
//
// The daemon:
// 1. Syncs once at startup
// 2. Polls Perforce for new changelists on a fixed interval
// 3. Watches the repo config file and reloads the mirror when it changes
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ravenbrook/helixmirror/internal/mirror"
	"github.com/ravenbrook/helixmirror/internal/p4"
)

// Syncer is the part of the mirror the daemon drives. Satisfied by
// *mirror.Mirror.
type Syncer interface {
	Sync(ctx context.Context) (*mirror.SyncResult, error)
}

// ReloadFunc rebuilds the syncer after the repo config file changes.
type ReloadFunc func() (Syncer, error)

// Config holds daemon settings.
type Config struct {
	// PollInterval is how often to ask Perforce for new changelists.
	PollInterval time.Duration

	// DebounceInterval is how long to wait after a config file event
	// before reloading. This batches rapid editor writes together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     60 * time.Second,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[hmx] ", log.LstdFlags),
	}
}

// Daemon drives one mirror: periodic syncs plus config reloads.
type Daemon struct {
	syncer     Syncer
	syncerMu   sync.Mutex
	configPath string
	reload     ReloadFunc
	config     *Config

	watcher   *fsnotify.Watcher
	pendingAt time.Time
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon for one mirror. configPath is the repo config file
// to watch; reload rebuilds the syncer from it. Use Start() to run.
func New(syncer Syncer, configPath string, reload ReloadFunc, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if configPath == "" {
		return nil, fmt.Errorf("configPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:     syncer,
		configPath: configPath,
		reload:     reload,
		config:     config,
		watcher:    watcher,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// This blocks until ctx is cancelled or a fatal error occurs. Retryable
// Perforce errors (network hiccups, login expiry) are logged and the next
// poll tries again; everything else stops the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.syncOnce(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	// Watch the directory, not the file: editors replace the file and the
	// inode watch would go stale after the first save.
	if err := d.watcher.Add(filepath.Dir(d.configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.configPath)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processReloads()
	go d.pollLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// syncOnce runs one sync against the current syncer.
//
// syncerMu is held for the whole sync, not just the pointer read: a reload
// tears down the previous syncer's state database, and that must not happen
// under a sync that is still using it.
func (d *Daemon) syncOnce(ctx context.Context) error {
	d.syncerMu.Lock()
	defer d.syncerMu.Unlock()

	result, err := d.syncer.Sync(ctx)
	if err != nil {
		return err
	}
	if result.Copied > 0 {
		d.config.Logger.Printf("Copied %d changes, head now %s at change %d",
			result.Copied, result.HeadSHA1, result.LastChange)
	}
	return nil
}

// pollLoop syncs on every tick.
func (d *Daemon) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if err := d.syncOnce(d.ctx); err != nil {
				if p4.IsRetryable(err) {
					d.config.Logger.Printf("Sync failed, will retry: %v", err)
					continue
				}
				d.config.Logger.Printf("Sync failed: %v", err)
				d.cancel()
				return
			}
		}
	}
}

// watchFileEvents monitors filesystem events and queues a reload.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.configPath) {
				continue
			}

			d.config.Logger.Printf("Config event: %s %s", event.Op, event.Name)
			d.queueReload()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueReload marks a reload pending with debouncing.
func (d *Daemon) queueReload() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pendingAt = time.Now()
}

// processReloads performs queued reloads once the debounce window passes.
func (d *Daemon) processReloads() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.maybeReload()
		}
	}
}

// maybeReload reloads the mirror if a config change has settled.
func (d *Daemon) maybeReload() {
	d.pendingMu.Lock()
	pending := !d.pendingAt.IsZero() && time.Since(d.pendingAt) >= d.config.DebounceInterval
	if pending {
		d.pendingAt = time.Time{}
	}
	d.pendingMu.Unlock()

	if !pending || d.reload == nil {
		return
	}

	d.config.Logger.Println("Reloading config")

	// Rebuild under syncerMu so the reload never closes the previous
	// syncer's resources while pollLoop has a sync in flight.
	d.syncerMu.Lock()
	defer d.syncerMu.Unlock()

	syncer, err := d.reload()
	if err != nil {
		// Keep the old mirror running on a bad config.
		d.config.Logger.Printf("Reload failed, keeping previous config: %v", err)
		return
	}

	d.syncer = syncer
	d.config.Logger.Println("Config reloaded")
}
