package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"price-notifications/internal/types"

	log "github.com/sirupsen/logrus"
)

// ReplaceAssets swaps the catalog of one price source in a single transaction.
func ReplaceAssets(source string, assets []types.Asset) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM assets WHERE source = ?;`, source); err != nil {
		return fmt.Errorf("failed to clear assets of %s: %w", source, err)
	}

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO assets (source, id, symbol, name, updated_at)
	VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, a := range assets {
		if _, err := stmt.Exec(source, a.ID, a.Symbol, a.Name, now); err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assets: %w", err)
	}
	log.Debugf("Saved %d assets for %s", len(assets), source)
	return nil
}

// FindAssets matches query case-insensitively against id, then name, then
// symbol, and returns the matches of the first field that has any.
func FindAssets(source, query string) ([]types.Asset, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	for _, column := range []string{"id", "name", "symbol"} {
		assets, err := findBy(source, column, query)
		if err != nil {
			return nil, err
		}
		if len(assets) > 0 {
			return assets, nil
		}
	}
	return nil, nil
}

func findBy(source, column, value string) ([]types.Asset, error) {
	q := fmt.Sprintf(`SELECT id, symbol, name FROM assets WHERE source = ? AND lower(%s) = ? ORDER BY id;`, column)
	rows, err := DB.Query(q, source, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets by %s: %w", column, err)
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var a types.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// CatalogInfo returns how many assets are cached for source and when they were refreshed.
func CatalogInfo(source string) (int, time.Time, error) {
	var (
		count   int
		updated sql.NullString
	)
	err := DB.QueryRow(`SELECT COUNT(*), MAX(updated_at) FROM assets WHERE source = ?;`, source).Scan(&count, &updated)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read catalog info: %w", err)
	}
	if !updated.Valid {
		return count, time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, updated.String)
	if err != nil {
		return count, time.Time{}, fmt.Errorf("failed to parse refresh time %q: %w", updated.String, err)
	}
	return count, t, nil
}
