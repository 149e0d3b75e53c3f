package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupTestFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "Button.component.json", `{"name": "Button", "description": "A button", "file_path": "src/Button.tsx"}`)
	writeFile(t, dir, "nested/Card.component.json", `{"name": "Card", "description": "A card", "file_path": "src/Card.tsx"}`)
	writeFile(t, dir, "Stories.stories.json", `[
		{"name": "Modal", "description": "A modal", "file_path": "src/Modal.tsx"},
		{"name": "Drawer", "description": "A drawer", "file_path": "src/Drawer.tsx"}
	]`)
	writeFile(t, dir, "__tests__/Fixture.component.json", `{"name": "Fixture", "file_path": "t.tsx"}`)
	writeFile(t, dir, "Broken.component.json", `{not json`)

	return dir
}

func collectedNames(t *testing.T, folder string, opts Options) map[string]bool {
	t.Helper()
	descriptors, _, err := Collect(folder, opts)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		got[d.Name] = true
	}
	return got
}

func TestCollectRecursive(t *testing.T) {
	dir := setupTestFolder(t)

	got := collectedNames(t, dir, Options{IncludeStorybooks: true, Recursive: true})
	for _, want := range []string{"Button", "Card", "Modal", "Drawer"} {
		if !got[want] {
			t.Errorf("missing descriptor %q, got %v", want, got)
		}
	}
	if got["Fixture"] {
		t.Error("test fixture should be excluded by default")
	}
}

func TestCollectReportsBadFiles(t *testing.T) {
	dir := setupTestFolder(t)

	_, errs, err := Collect(dir, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d file errors, want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0], "Broken.component.json") {
		t.Errorf("error = %q, want it to name the broken file", errs[0])
	}
}

func TestCollectWithoutStorybooks(t *testing.T) {
	dir := setupTestFolder(t)

	got := collectedNames(t, dir, Options{IncludeStorybooks: false, Recursive: true})
	if got["Modal"] || got["Drawer"] {
		t.Errorf("storybook descriptors present with IncludeStorybooks=false: %v", got)
	}
	if !got["Button"] {
		t.Errorf("component descriptors missing: %v", got)
	}
}

func TestCollectIncludeTests(t *testing.T) {
	dir := setupTestFolder(t)

	got := collectedNames(t, dir, Options{IncludeTests: true, Recursive: true})
	if !got["Fixture"] {
		t.Errorf("test fixture missing with IncludeTests=true: %v", got)
	}
}

func TestCollectNonRecursive(t *testing.T) {
	dir := setupTestFolder(t)

	got := collectedNames(t, dir, Options{IncludeStorybooks: true, Recursive: false})
	if got["Card"] {
		t.Error("nested descriptor picked up with Recursive=false")
	}
	if !got["Button"] {
		t.Errorf("top-level descriptor missing: %v", got)
	}
}

func TestCollectMissingFolder(t *testing.T) {
	if _, _, err := Collect(filepath.Join(t.TempDir(), "nope"), Options{}); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestCollectFileNotFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")

	if _, _, err := Collect(filepath.Join(dir, "file.txt"), Options{}); err == nil {
		t.Error("expected error when path is a file")
	}
}

func TestIsTestPath(t *testing.T) {
	cases := map[string]bool{
		"src/__tests__/Button.component.json": true,
		"src/Button.test.component.json":      true,
		"src/Button.spec.component.json":      true,
		"src/Button.component.json":           false,
	}
	for path, want := range cases {
		if got := isTestPath(path); got != want {
			t.Errorf("isTestPath(%q) = %v, want %v", path, got, want)
		}
	}
}
