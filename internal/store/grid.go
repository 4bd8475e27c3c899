package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halcyongrid/logind/internal/domain"
)

const regionColumns = `region_id, scope_id, name, coord_x, coord_y, host_name, port, server_uri, safe`

func scanRegion(row interface{ Scan(...interface{}) error }) (*domain.RegionDescriptor, error) {
	var region domain.RegionDescriptor
	var safe int
	err := row.Scan(
		&region.ID, &region.ScopeID, &region.Name,
		&region.CoordX, &region.CoordY,
		&region.HostName, &region.Port, &region.ServerURI, &safe,
	)
	if err != nil {
		return nil, err
	}
	region.Safe = safe != 0
	return &region, nil
}

func (s *SQLiteStore) queryRegions(ctx context.Context, query string, args ...interface{}) ([]*domain.RegionDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close region rows", "error", closeErr)
		}
	}()

	var regions []*domain.RegionDescriptor
	for rows.Next() {
		region, err := scanRegion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}

// RegionByID returns the region with the given identifier, or
// (nil, nil) when the registry does not know it.
func (s *SQLiteStore) RegionByID(ctx context.Context, scopeID, regionID string) (*domain.RegionDescriptor, error) {
	query := `SELECT ` + regionColumns + ` FROM regions
		WHERE region_id = ? AND (? = '' OR scope_id = ?)`
	region, err := scanRegion(s.db.QueryRowContext(ctx, query, regionID, scopeID, scopeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan region row: %w", err)
	}
	return region, nil
}

// likeEscaper neutralizes the LIKE metacharacters in user-supplied
// region names so they match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// RegionsByNamePattern returns up to limit regions whose names start
// with pattern, ordered by name. An empty pattern matches any region.
func (s *SQLiteStore) RegionsByNamePattern(ctx context.Context, scopeID, pattern string, limit int) ([]*domain.RegionDescriptor, error) {
	query := `SELECT ` + regionColumns + ` FROM regions
		WHERE name LIKE ? ESCAPE '\' AND (? = '' OR scope_id = ?)
		ORDER BY name LIMIT ?`
	return s.queryRegions(ctx, query, likeEscaper.Replace(pattern)+"%", scopeID, scopeID, limit)
}

// DefaultRegions returns the reachable regions designated as login
// defaults for the scope.
func (s *SQLiteStore) DefaultRegions(ctx context.Context, scopeID string) ([]*domain.RegionDescriptor, error) {
	query := `SELECT ` + regionColumns + ` FROM regions
		WHERE is_default = 1 AND safe = 1 AND (? = '' OR scope_id = ?)
		ORDER BY name`
	return s.queryRegions(ctx, query, scopeID, scopeID)
}

// FallbackRegions returns reachable fallback regions ordered by
// distance from the given grid coordinate.
func (s *SQLiteStore) FallbackRegions(ctx context.Context, scopeID string, x, y int) ([]*domain.RegionDescriptor, error) {
	query := `SELECT ` + regionColumns + ` FROM regions
		WHERE is_fallback = 1 AND safe = 1 AND (? = '' OR scope_id = ?)
		ORDER BY (coord_x - ?) * (coord_x - ?) + (coord_y - ?) * (coord_y - ?)`
	return s.queryRegions(ctx, query, scopeID, scopeID, x, x, y, y)
}

// SafeRegions returns the reachable regions explicitly designated as
// trustworthy destinations, nearest first.
func (s *SQLiteStore) SafeRegions(ctx context.Context, scopeID string, x, y int) ([]*domain.RegionDescriptor, error) {
	query := `SELECT ` + regionColumns + ` FROM regions
		WHERE is_safe = 1 AND safe = 1 AND (? = '' OR scope_id = ?)
		ORDER BY (coord_x - ?) * (coord_x - ?) + (coord_y - ?) * (coord_y - ?)`
	return s.queryRegions(ctx, query, scopeID, scopeID, x, x, y, y)
}

// MarkUnsafe clears the region's reachability flag. Idempotent.
func (s *SQLiteStore) MarkUnsafe(ctx context.Context, regionID string) error {
	if err := s.execRetry(ctx, `UPDATE regions SET safe = 0 WHERE region_id = ?`, regionID); err != nil {
		return fmt.Errorf("mark region unsafe: %w", err)
	}
	return nil
}

// UpsertRegion registers or refreshes a region in the registry along
// with its role flags. Used at startup to seed standalone deployments
// and by registry maintenance tooling.
func (s *SQLiteStore) UpsertRegion(ctx context.Context, region *domain.RegionDescriptor, isDefault, isFallback, isSafe bool) error {
	query := `
		INSERT INTO regions (region_id, scope_id, name, coord_x, coord_y,
			host_name, port, server_uri, safe, is_default, is_fallback, is_safe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(region_id) DO UPDATE SET
			scope_id = excluded.scope_id,
			name = excluded.name,
			coord_x = excluded.coord_x,
			coord_y = excluded.coord_y,
			host_name = excluded.host_name,
			port = excluded.port,
			server_uri = excluded.server_uri,
			safe = excluded.safe,
			is_default = excluded.is_default,
			is_fallback = excluded.is_fallback,
			is_safe = excluded.is_safe`

	_, err := s.db.ExecContext(ctx, query,
		region.ID, region.ScopeID, region.Name, region.CoordX, region.CoordY,
		region.HostName, region.Port, region.ServerURI,
		boolToInt(region.Safe), boolToInt(isDefault), boolToInt(isFallback), boolToInt(isSafe),
	)
	if err != nil {
		return fmt.Errorf("upsert region: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
