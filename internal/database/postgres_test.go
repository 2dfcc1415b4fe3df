package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    int
		wantErr bool
	}{
		{"initial schema", "001_initial_schema.sql", 1, false},
		{"double digit", "012_add_sync_columns.sql", 12, false},
		{"no prefix", "schema.sql", 0, true},
		{"non-numeric prefix", "abc_schema.sql", 0, true},
		{"zero version", "000_bad.sql", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrationVersion(tt.file)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got version %d", tt.file, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("migrationVersion(%q) failed: %v", tt.file, err)
			}
			if got != tt.want {
				t.Errorf("migrationVersion(%q) = %d, want %d", tt.file, got, tt.want)
			}
		})
	}
}
