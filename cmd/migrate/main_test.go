package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := []struct {
		name string
		want int64
	}{
		{"001_init.up.sql", 1},
		{"002_challenge_expiry_index.up.sql", 2},
		{"120_with_more_underscores.up.sql", 120},
	}
	for _, tc := range cases {
		got, err := versionFromFile(tc.name)
		if err != nil {
			t.Fatalf("versionFromFile(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("versionFromFile(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
	for _, bad := range []string{"init.up.sql", "abc_init.up.sql"} {
		if _, err := versionFromFile(bad); err == nil {
			t.Errorf("versionFromFile(%q): expected error", bad)
		}
	}
}

func TestUpMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"010_later.up.sql",
		"002_challenge_expiry_index.up.sql",
		"002_challenge_expiry_index.down.sql",
		"001_init.up.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := upMigrations(dir)
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	want := []int64{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d: %+v", len(got), len(want), got)
	}
	for i, m := range got {
		if m.version != want[i] {
			t.Errorf("migration %d: version %d, want %d", i, m.version, want[i])
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "010_clash.up.sql"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := upMigrations(dir); err == nil {
		t.Error("expected duplicate version error")
	}
}
