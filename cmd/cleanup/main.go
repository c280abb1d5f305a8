// Package main is the maintenance job for charrank: it evicts stale session
// snapshots from the database and archives a rankings export to object
// storage. Intended to run on a schedule (cron or a systemd timer).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/onnwee/charrank/internal/backup"
	"github.com/onnwee/charrank/internal/config"
	"github.com/onnwee/charrank/internal/db"
	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/rankings"
	"github.com/onnwee/charrank/internal/sessions"
)

// rankingsExport is the archive payload: every user's saved order plus the
// global consensus, timestamped for later inspection.
type rankingsExport struct {
	ExportedAt time.Time           `json:"exported_at"`
	Users      map[string][]string `json:"users"`
	GlobalTop  []string            `json:"global_top"`
}

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	dryRun := flag.Bool("dry-run", false, "report what would be done without changing anything")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(envOf(cfg))
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger, *dryRun); err != nil {
		logger.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun bool) error {
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	store := sessions.NewPostgresStore(conn, logger)
	repo := rankings.NewPostgresRepository(conn, logger)

	// Stale sessions: anything untouched for longer than the session timeout.
	if dryRun {
		users, err := store.Users(ctx)
		if err != nil {
			return err
		}
		logger.Info("dry run: would scan sessions for staleness",
			"sessions", len(users),
			"timeout_hours", cfg.SessionTimeoutHours)
	} else {
		deleted, err := store.DeleteOlderThan(ctx, cfg.SessionTimeoutHours)
		if err != nil {
			return fmt.Errorf("failed to delete stale sessions: %w", err)
		}
		logger.Info("stale sessions deleted", "count", deleted)
	}

	// Backup is optional; skip when no bucket is configured.
	if cfg.BackupBucketName == "" {
		logger.Info("backup not configured, skipping rankings export")
		return nil
	}

	export, err := buildExport(ctx, repo, cfg.GlobalTopN)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rankings export: %w", err)
	}

	if dryRun {
		logger.Info("dry run: would archive rankings export",
			"users", len(export.Users),
			"bytes", len(data))
		return nil
	}

	archiver, err := backup.NewArchiver(backup.Config{
		BucketName:      cfg.BackupBucketName,
		AccessKeyID:     cfg.BackupAccessKeyID,
		SecretAccessKey: cfg.BackupSecretAccessKey,
		Endpoint:        cfg.BackupEndpoint,
		MaxBackups:      cfg.MaxBackups,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create archiver: %w", err)
	}

	key, err := archiver.Archive(ctx, "rankings", data)
	if err != nil {
		return fmt.Errorf("failed to archive rankings: %w", err)
	}
	logger.Info("rankings export archived", "key", key, "users", len(export.Users))
	return nil
}

// buildExport gathers every saved ranking and the global top into one payload.
func buildExport(ctx context.Context, repo rankings.Repository, topN int) (*rankingsExport, error) {
	users, err := repo.UsersWithRankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranked users: %w", err)
	}

	export := &rankingsExport{
		ExportedAt: time.Now().UTC(),
		Users:      make(map[string][]string, len(users)),
	}
	for _, userID := range users {
		order, err := repo.GetRanking(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ranking for %s: %w", userID, err)
		}
		export.Users[userID] = order
	}

	top, err := repo.GlobalTop(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to compute global top: %w", err)
	}
	export.GlobalTop = top
	return export, nil
}

// envOf tolerates a nil config when Load fails before producing one.
func envOf(cfg *config.Config) string {
	if cfg == nil {
		return config.DefaultEnv
	}
	return cfg.Env
}
