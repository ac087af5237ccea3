package migrations

import (
	"testing"
	"testing/fstest"
)

func TestParseVersionNumber(t *testing.T) {
	cases := map[string]struct {
		version int
		ok      bool
	}{
		"V1__init.sql":          {1, true},
		"V12__add_columns.sql":  {12, true},
		"init.sql":              {0, false},
		"Vx__broken.sql":        {0, false},
		"V3_missing_double.sql": {0, false},
	}
	for name, want := range cases {
		got, ok := parseVersionNumber(name)
		if ok != want.ok || got != want.version {
			t.Fatalf("%s: got (%d,%v), want (%d,%v)", name, got, ok, want.version, want.ok)
		}
	}
}

func TestListMigrationsOrdersNumerically(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__later.sql": {Data: []byte("SELECT 1;")},
		"V2__second.sql": {Data: []byte("SELECT 1;")},
		"V1__first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("notes")},
	}
	migs, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}
	want := []int{1, 2, 10}
	for i, mig := range migs {
		if mig.Version != want[i] {
			t.Fatalf("position %d: got version %d, want %d", i, mig.Version, want[i])
		}
	}
}

func TestListMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"V1__a.sql": {Data: []byte("SELECT 1;")},
		"V1__b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := listMigrations(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedFilesAreListed(t *testing.T) {
	migs, err := listMigrations(Files())
	if err != nil {
		t.Fatalf("list embedded: %v", err)
	}
	if len(migs) < 2 || migs[0].Version != 1 {
		t.Fatalf("unexpected embedded migrations: %+v", migs)
	}
}
