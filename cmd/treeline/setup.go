package main

import (
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/treeline-dev/treeline/internal/engine"
	"github.com/treeline-dev/treeline/internal/jira"
	"github.com/treeline-dev/treeline/internal/manifest"
)

// openStore creates the manifest store the config names.
func openStore() (manifest.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return manifest.NewFileStore(filepath.Join(cfg.Store.Path, "manifests"), cfg.Store.TTL)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Store.RedisAddr,
			DB:   cfg.Store.RedisDB,
		})
		return manifest.NewRedisStore(client, cfg.Store.TTL), nil
	case "sqlite":
		return manifest.OpenSQLStore(filepath.Join(cfg.Store.Path, "manifests.db"), cfg.Store.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildEngine wires the engine from configuration, with an optional project
// key override from the command line.
func buildEngine(projectOverride string) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	project := cfg.Jira.Project
	if projectOverride != "" {
		project = projectOverride
	}

	client := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.APIToken)
	builder := jira.NewPayloadBuilder(project)
	store, err := openStore()
	if err != nil {
		return nil, err
	}

	return engine.New(builder, client, store, engine.Options{
		Timeout:     cfg.Bulk.Timeout,
		Concurrency: cfg.Bulk.Concurrency,
		Logger:      log,
	})
}
