package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestFSScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	t.Run("sorts by numeric version and derives metadata", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
			"migrations/002_second_step.sql":    {Data: []byte("-- comment\nCREATE TABLE u (id TEXT);")},
			"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
			"migrations/README.md":              {Data: []byte("ignored")},
		}

		got, err := NewFSScanner(fsys, "migrations").ScanMigrations()
		if err != nil {
			t.Fatalf("ScanMigrations returned error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(got))
		}
		wantOrder := []string{"001", "002", "010"}
		for i, v := range wantOrder {
			if got[i].Version != v {
				t.Fatalf("position %d: expected version %s, got %s", i, v, got[i].Version)
			}
		}
		if got[0].Description != "initial schema" {
			t.Fatalf("unexpected description %q", got[0].Description)
		}
		if got[0].Checksum == "" || got[0].Checksum == got[1].Checksum {
			t.Fatalf("expected distinct checksums")
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/001_a.sql":  {Data: []byte("SELECT 1;")},
			"m/0001_b.sql": {Data: []byte("SELECT 2;")},
		}
		_, err := NewFSScanner(fsys, "m").ScanMigrations()
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects malformed names and empty scripts", func(t *testing.T) {
		t.Parallel()

		bad := fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1;")}}
		if _, err := NewFSScanner(bad, "m").ScanMigrations(); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile for bad name, got %v", err)
		}

		empty := fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}}
		if _, err := NewFSScanner(empty, "m").ScanMigrations(); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile for empty script, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	script := `
-- leading comment
CREATE TABLE a (id TEXT);

-- another
INSERT INTO a (id) VALUES ('x');
;
`
	got := splitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "INSERT INTO a (id) VALUES ('x')" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}
