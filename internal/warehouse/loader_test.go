package warehouse

import (
	"strings"
	"testing"
)

func TestNewPGLoader_ValidatesTargets(t *testing.T) {
	tests := []struct {
		name    string
		targets []TargetTable
	}{
		{"missing name", []TargetTable{{Columns: []string{"a"}, Key: []string{"a"}}}},
		{"missing columns", []TargetTable{{Name: "t", Key: []string{"a"}}}},
		{"missing key", []TargetTable{{Name: "t", Columns: []string{"a"}}}},
		{"key not in columns", []TargetTable{{Name: "t", Columns: []string{"a"}, Key: []string{"b"}}}},
		{"duplicate target", []TargetTable{
			{Name: "t", Columns: []string{"a"}, Key: []string{"a"}},
			{Name: "t", Columns: []string{"a"}, Key: []string{"a"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPGLoader(nil, tt.targets); err == nil {
				t.Error("NewPGLoader() accepted an invalid declaration")
			}
		})
	}

	if _, err := NewPGLoader(nil, DefaultTargets()); err != nil {
		t.Errorf("NewPGLoader() rejected the shipped targets: %v", err)
	}
}

func TestBuildUpsert(t *testing.T) {
	q := buildUpsert(TargetTable{
		Name:    "fut_daily_quotes",
		Columns: []string{"trade_date", "contract", "close"},
		Key:     []string{"trade_date", "contract"},
	})

	want := "INSERT INTO fut_daily_quotes (trade_date, contract, close) " +
		"VALUES ($1, $2, $3) " +
		"ON CONFLICT (trade_date, contract) DO UPDATE SET close = EXCLUDED.close"
	if q != want {
		t.Errorf("buildUpsert() =\n%s\nwant\n%s", q, want)
	}
}

func TestBuildUpsert_AllKeyColumnsDoNothing(t *testing.T) {
	q := buildUpsert(TargetTable{
		Name:    "seen_days",
		Columns: []string{"trade_date", "contract"},
		Key:     []string{"trade_date", "contract"},
	})
	if !strings.HasSuffix(q, "DO NOTHING") {
		t.Errorf("buildUpsert() = %s, want DO NOTHING when every column is key", q)
	}
}
