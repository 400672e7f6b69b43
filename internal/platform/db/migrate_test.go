package db

import (
	"testing"

	"github.com/spf13/afero"
)

func writeFiles(t *testing.T, fs afero.Fs, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := afero.WriteFile(fs, dir+"/"+name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoad_SortedByVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/migrations", map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"005_middle.sql": "SELECT 5;",
	})

	migrations, err := NewMigrator(nil, fs, "/migrations").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 5, 10} {
		if migrations[i].Version != want {
			t.Errorf("migration[%d]: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL %q", migrations[0].SQL)
	}
}

func TestLoad_SkipsInvalidNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/migrations", map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not sql",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	})
	if err := fs.MkdirAll("/migrations/003_dir.sql", 0o755); err != nil {
		t.Fatal(err)
	}

	migrations, err := NewMigrator(nil, fs, "/migrations").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
	if migrations[0].Name != "001_valid.sql" || migrations[1].Name != "002_also_valid.sql" {
		t.Errorf("unexpected migrations %+v", migrations)
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/migrations", 0o755); err != nil {
		t.Fatal(err)
	}
	migrations, err := NewMigrator(nil, fs, "/migrations").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := NewMigrator(nil, afero.NewMemMapFs(), "/nope").Load(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
