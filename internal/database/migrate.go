package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations
var migrationFS embed.FS

// execFunc runs one SQL statement.
type execFunc func(ctx context.Context, stmt string) error

// applyMigrations runs migrations/<dir>/*.sql in lexical order. Files may
// hold several statements separated by ";".
func applyMigrations(ctx context.Context, dir string, logger *zap.Logger, exec execFunc) error {
	names, err := migrationNames(dir)
	if err != nil {
		return err
	}

	for _, name := range names {
		raw, err := migrationFS.ReadFile("migrations/" + dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(raw)) {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", name, err)
			}
		}
		logger.Info("migration applied", zap.String("store", dir), zap.String("migration", name))
	}
	return nil
}

func migrationNames(dir string) ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations/" + dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
