package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"livelist/internal/liststore"
	"livelist/internal/live"
)

const defaultServer = "http://localhost:8080"

type rootFlags struct {
	configPath string
	server     string
	dataDir    string
	logLevel   string
	password   string
}

// clientConfig is the TOML file at --config, or <user config dir>/livelist/config.toml.
type clientConfig struct {
	Server  string `toml:"server"`
	DataDir string `toml:"data_dir"`
	// Avatar overrides the generated name kept in identity.toml.
	Avatar string `toml:"avatar"`
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *clientConfig
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".livelist"
	}
	return filepath.Join(dir, "livelist")
}

func loadClientConfig(path string) (*clientConfig, error) {
	cfg := &clientConfig{}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *commandContext) ensureConfig() (*clientConfig, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.configPath)
		if path == "" {
			path = filepath.Join(defaultConfigDir(), "config.toml")
		}
		cfg, err := loadClientConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if s := strings.TrimSpace(c.flags.server); s != "" {
			cfg.Server = s
		}
		if cfg.Server == "" {
			cfg.Server = defaultServer
		}
		if d := strings.TrimSpace(c.flags.dataDir); d != "" {
			cfg.DataDir = d
		}
		if cfg.DataDir == "" {
			cfg.DataDir = defaultConfigDir()
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			c.configErr = fmt.Errorf("create data dir: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) server() string {
	cfg, _ := c.ensureConfig()
	return strings.TrimRight(cfg.Server, "/")
}

func (c *commandContext) password() string {
	return c.flags.password
}

func (c *commandContext) identityPath() string {
	cfg, _ := c.ensureConfig()
	return filepath.Join(cfg.DataDir, "identity.toml")
}

func (c *commandContext) avatar() (string, error) {
	cfg, _ := c.ensureConfig()
	if cfg.Avatar != "" {
		return cfg.Avatar, nil
	}
	return live.LoadOrCreateAvatar(c.identityPath())
}

// localLists is the open list database and the lock that guards it.
type localLists struct {
	*liststore.Store
	db   *liststore.SQLitePersister
	lock *flock.Flock
}

func (l *localLists) Close() error {
	err := l.db.Close()
	if unlockErr := l.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// openLists takes the data dir lock and loads the local lists. Only one
// livelist process may hold the data dir at a time.
func (c *commandContext) openLists(ctx context.Context) (*localLists, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.DataDir, "livelist.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is in use by another livelist process", cfg.DataDir)
	}

	db, err := liststore.OpenSQLite(filepath.Join(cfg.DataDir, "lists.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	store, err := liststore.Open(ctx, db)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("load lists: %w", err)
	}
	return &localLists{Store: store, db: db, lock: lock}, nil
}
