package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ravenbrook/helixmirror/internal/gitx"
	"github.com/ravenbrook/helixmirror/internal/mirror"
	"github.com/ravenbrook/helixmirror/internal/p4"
	"github.com/ravenbrook/helixmirror/internal/repocfg"
	"github.com/ravenbrook/helixmirror/internal/state"
	"github.com/ravenbrook/helixmirror/internal/usermap"
	"github.com/ravenbrook/helixmirror/internal/view"
)

// app bundles everything a command needs to operate one mirror.
type app struct {
	cfg    *repocfg.Config
	p4     *p4.P4
	git    *gitx.Repo
	db     *state.DB
	mirror *mirror.Mirror
	logger *log.Logger
}

// openApp wires up a mirror from the repo config file. events may be nil.
func openApp(ctx context.Context, configPath string, logger *log.Logger, events chan<- mirror.Event) (*app, error) {
	cfg, err := repocfg.Load(configPath)
	if err != nil {
		return nil, err
	}

	p4c, err := p4.New(p4.Config{
		Port:    cfg.Perforce.Port,
		User:    cfg.Perforce.User,
		Client:  cfg.Perforce.Client,
		Charset: cfg.Perforce.Charset,
	})
	if err != nil {
		return nil, err
	}

	if _, err := p4c.Version(ctx); err != nil {
		return nil, err
	}
	loggedIn, err := p4c.LoggedIn(ctx)
	if err != nil {
		return nil, err
	}
	if !loggedIn {
		return nil, fmt.Errorf("not logged in to %s: run \"p4 -p %s -u %s login\" first",
			cfg.Perforce.Port, cfg.Perforce.Port, cfg.Perforce.User)
	}

	if err := gitx.CheckVersion(); err != nil {
		return nil, err
	}
	git, err := gitx.Open(cfg.Repo.GitDir)
	if err != nil {
		if !errors.Is(err, gitx.ErrNotARepo) {
			return nil, err
		}
		git, err = gitx.Init(cfg.Repo.GitDir)
		if err != nil {
			return nil, err
		}
		logger.Printf("Initialized bare repository at %s", cfg.Repo.GitDir)
	}

	db, err := state.Open(statePath(git.GitDir()))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	vm, err := view.Parse(cfg.Repo.View)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	users, err := loadUsers(ctx, cfg, p4c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	serverID, err := p4c.ResolveServerID(ctx, cfg.ServerID.Override)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolving server identity: %w", err)
	}

	m, err := mirror.New(mirror.Config{
		P4:       p4c,
		Git:      git,
		State:    db,
		Repo:     cfg,
		Users:    users,
		View:     vm,
		ServerID: serverID,
		Logger:   logger,
		Events:   events,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{cfg: cfg, p4: p4c, git: git, db: db, mirror: m, logger: logger}, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Printf("Closing state database: %v", err)
		}
	}
}

// statePath keeps the state database inside the git directory so repo and
// state move together.
func statePath(gitDir string) string {
	return filepath.Join(gitDir, "hmx-state.db")
}

// loadUsers builds the identity map from the optional usermap file plus
// the server's user list. An unreachable user list degrades to placeholder
// identities rather than failing the mirror.
func loadUsers(ctx context.Context, cfg *repocfg.Config, p4c *p4.P4, logger *log.Logger) (*usermap.Map, error) {
	var entries []usermap.User
	if cfg.Copy.UserMapFile != "" {
		f, err := os.Open(cfg.Copy.UserMapFile)
		if err != nil {
			return nil, fmt.Errorf("opening usermap: %w", err)
		}
		defer f.Close()
		entries, err = usermap.ParseFile(f)
		if err != nil {
			return nil, fmt.Errorf("parsing usermap: %w", err)
		}
	}

	p4Users, err := p4c.Users(ctx)
	if err != nil {
		logger.Printf("Listing Perforce users: %v", err)
	}
	return usermap.New(entries, p4Users), nil
}
