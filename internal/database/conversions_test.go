package database

import (
	"strings"
	"testing"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

func TestListConversionsQuery(t *testing.T) {
	keyID := "key-1"
	userID := "user-1"

	tests := []struct {
		name      string
		filter    models.ConversionFilter
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "no filter uses default limit",
			filter:    models.ConversionFilter{},
			wantQuery: "SELECT * FROM conversions ORDER BY created_at DESC LIMIT $1",
			wantArgs:  []any{defaultListLimit},
		},
		{
			name:      "api key owner",
			filter:    models.ConversionFilter{APIKeyID: &keyID, Limit: 5},
			wantQuery: "SELECT * FROM conversions WHERE api_key_id = $1 ORDER BY created_at DESC LIMIT $2",
			wantArgs:  []any{keyID, 5},
		},
		{
			name:      "user owner with status",
			filter:    models.ConversionFilter{UserID: &userID, Status: models.StatusFailed, Limit: 50},
			wantQuery: "SELECT * FROM conversions WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3",
			wantArgs:  []any{userID, models.StatusFailed, 50},
		},
		{
			name:      "limit above max is clamped",
			filter:    models.ConversionFilter{Limit: 10_000},
			wantQuery: "SELECT * FROM conversions ORDER BY created_at DESC LIMIT $1",
			wantArgs:  []any{defaultListLimit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := listConversionsQuery(tt.filter)
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestConversionStatsQuery(t *testing.T) {
	userID := "user-1"

	query, args := conversionStatsQuery(models.ConversionFilter{UserID: &userID, Status: models.StatusFailed, Limit: 5})
	if !strings.HasSuffix(query, "FROM conversions WHERE user_id = $1") {
		t.Errorf("query = %q, want it scoped to the user only", query)
	}
	if len(args) != 1 || args[0] != userID {
		t.Errorf("args = %v, want [%s]", args, userID)
	}

	query, args = conversionStatsQuery(models.ConversionFilter{})
	if strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Errorf("unfiltered query = %q %v, want no WHERE clause", query, args)
	}
	for _, col := range []string{"AS total", "AS completed", "AS failed", "AS pages", "AS output_bytes"} {
		if !strings.Contains(query, col) {
			t.Errorf("query is missing %q", col)
		}
	}
}
