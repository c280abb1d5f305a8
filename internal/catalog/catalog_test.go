package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writePortraits(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n+".png"), []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadFromDirectorySorted(t *testing.T) {
	dir := t.TempDir()
	writePortraits(t, dir, "Zoe", "Alice", "Mike")

	svc := NewService(dir, nil, nil)

	want := []string{"Alice", "Mike", "Zoe"}
	got := svc.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
	if svc.Count() != 3 {
		t.Errorf("Count() = %d, want 3", svc.Count())
	}
}

func TestFallbackWhenDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, []string{"Hero", "Villain"}, nil)

	if svc.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 fallback characters", svc.Count())
	}
	if _, ok := svc.IndexByName("Hero"); !ok {
		t.Error("fallback character Hero not indexed")
	}
}

func TestFallbackWhenDirectoryMissing(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "nope"), []string{"Hero"}, nil)

	if svc.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", svc.Count())
	}
	if svc.ValidateDirectory() {
		t.Error("ValidateDirectory() = true for a missing directory")
	}
}

func TestNonPNGAndInvalidNamesSkipped(t *testing.T) {
	dir := t.TempDir()
	writePortraits(t, dir, "Alice")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, " .png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(dir, nil, nil)
	if svc.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (txt and blank-named files skipped)", svc.Count())
	}
}

func TestByIndexAndIndexByName(t *testing.T) {
	dir := t.TempDir()
	writePortraits(t, dir, "Alice", "Bob")
	svc := NewService(dir, nil, nil)

	c, ok := svc.ByIndex(1)
	if !ok || c.Name != "Bob" {
		t.Errorf("ByIndex(1) = %+v, %v; want Bob", c, ok)
	}
	if _, ok := svc.ByIndex(-1); ok {
		t.Error("ByIndex(-1) should fail")
	}
	if _, ok := svc.ByIndex(2); ok {
		t.Error("ByIndex(2) should fail")
	}
	if i, ok := svc.IndexByName("Alice"); !ok || i != 0 {
		t.Errorf("IndexByName(Alice) = %d, %v; want 0, true", i, ok)
	}
	if _, ok := svc.IndexByName("Nobody"); ok {
		t.Error("IndexByName(Nobody) should fail")
	}
}

func TestReloadPicksUpNewPortraits(t *testing.T) {
	dir := t.TempDir()
	writePortraits(t, dir, "Alice")
	svc := NewService(dir, nil, nil)
	if svc.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", svc.Count())
	}

	writePortraits(t, dir, "Bob")
	if got := svc.Reload(); got != 2 {
		t.Errorf("Reload() = %d, want 2", got)
	}
	if i, ok := svc.IndexByName("Bob"); !ok || i != 1 {
		t.Errorf("IndexByName(Bob) after reload = %d, %v; want 1, true", i, ok)
	}
}

func TestMissingFiles(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, []string{"Ghost"}, nil)

	missing := svc.MissingFiles()
	if len(missing) != 1 {
		t.Fatalf("MissingFiles() = %v, want one entry", missing)
	}
	if missing[0] != filepath.Join(dir, "Ghost.png") {
		t.Errorf("missing path = %q", missing[0])
	}
}

func TestNewlyDiscovered(t *testing.T) {
	dir := t.TempDir()
	writePortraits(t, dir, "Alice", "Newcomer")

	svc := NewService(dir, []string{"Alice", "Bob"}, nil)

	fresh := svc.NewlyDiscovered()
	if len(fresh) != 1 || fresh[0] != "Newcomer" {
		t.Errorf("NewlyDiscovered() = %v, want [Newcomer]", fresh)
	}
}
