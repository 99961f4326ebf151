// conversions.go stores conversion metadata. Document bytes never reach the
// database; a row only records sizes, counts and the outcome.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateConversion inserts a finished (completed or failed) conversion record.
// The ID is assigned by the caller, since it is handed out before the row exists.
func (db *DB) CreateConversion(ctx context.Context, c *models.Conversion) error {
	query := `
		INSERT INTO conversions (id, original_name, input_size, intermediate_size, output_size, page_count,
			outline_entries, status, error_kind, error_message, duration_ms, api_key_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	return db.QueryRowContext(ctx, query,
		c.ID, c.OriginalName, c.InputSize, c.IntermediateSize, c.OutputSize, c.PageCount,
		c.OutlineEntries, c.Status, c.ErrorKind, c.ErrorMessage, c.DurationMS, c.APIKeyID, c.UserID,
	).Scan(&c.CreatedAt)
}

// GetConversion retrieves a single conversion record by ID.
func (db *DB) GetConversion(ctx context.Context, id string) (*models.Conversion, error) {
	var c models.Conversion
	err := db.GetContext(ctx, &c, `SELECT * FROM conversions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("conversion not found: %w", err)
	}
	return &c, nil
}

// ListConversions returns the most recent conversions matching the filter.
func (db *DB) ListConversions(ctx context.Context, f models.ConversionFilter) ([]models.Conversion, error) {
	query, args := listConversionsQuery(f)

	var conversions []models.Conversion
	if err := db.SelectContext(ctx, &conversions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return conversions, nil
}

// ConversionStats totals the conversions matching the filter. Limit and
// Status are ignored.
func (db *DB) ConversionStats(ctx context.Context, f models.ConversionFilter) (*models.ConversionStats, error) {
	query, args := conversionStatsQuery(f)

	var stats models.ConversionStats
	if err := db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	return &stats, nil
}

// listConversionsQuery builds the SELECT for ListConversions. Placeholders
// are numbered in the order conditions are added.
func listConversionsQuery(f models.ConversionFilter) (string, []any) {
	f.Limit = clampLimit(f.Limit)

	var b strings.Builder
	b.WriteString("SELECT * FROM conversions")
	args := writeOwnerWhere(&b, f, true)
	args = append(args, f.Limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))

	return b.String(), args
}

func conversionStatsQuery(f models.ConversionFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COALESCE(SUM(page_count), 0) AS pages,
		COALESCE(SUM(output_size), 0) AS output_bytes
		FROM conversions`)
	args := writeOwnerWhere(&b, f, false)
	return b.String(), args
}

// writeOwnerWhere appends the WHERE clause for the filter's owner (and,
// with byStatus, its status) and returns the matching arguments.
func writeOwnerWhere(b *strings.Builder, f models.ConversionFilter, byStatus bool) []any {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.APIKeyID != nil {
		add("api_key_id = $%d", *f.APIKeyID)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if byStatus && f.Status != "" {
		add("status = $%d", f.Status)
	}

	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	return args
}

// clampLimit replaces a missing or oversized page size with the default.
func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}
