package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempInbox(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func writeFile(t *testing.T, d *Dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(d.Root(), name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewDirCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	info, err := os.Stat(d.Root())
	if err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestListOnlyMarkdownInRoot(t *testing.T) {
	d := tempInbox(t)
	writeFile(t, d, "a.md", "a")
	writeFile(t, d, "b.txt", "b")
	if err := os.MkdirAll(filepath.Join(d.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, d, filepath.Join("sub", "c.md"), "c")

	files, err := d.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.md" {
		t.Errorf("List = %v, want only a.md", files)
	}
}

func TestRead(t *testing.T) {
	d := tempInbox(t)
	writeFile(t, d, "note.md", "# Hello\nWorld\n")
	got, err := d.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\nWorld\n" {
		t.Errorf("content = %q", got)
	}
}

func TestReadRejectsTraversal(t *testing.T) {
	d := tempInbox(t)
	for _, name := range []string{"", "../escape.md", "sub/file.md", "./x.md"} {
		if _, err := d.Read(name); err == nil {
			t.Errorf("Read(%q) should fail", name)
		}
	}
}

func TestMoveIntoSubdir(t *testing.T) {
	d := tempInbox(t)
	writeFile(t, d, "done.md", "content")

	if err := d.Move("done.md", "imported"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := d.Read("done.md"); err == nil {
		t.Error("file still readable at old location")
	}
	moved, err := os.ReadFile(filepath.Join(d.Root(), "imported", "done.md"))
	if err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
	if string(moved) != "content" {
		t.Errorf("moved content = %q", moved)
	}
}

func TestMoveRejectsBadSubdir(t *testing.T) {
	d := tempInbox(t)
	writeFile(t, d, "x.md", "x")
	if err := d.Move("x.md", "../out"); err == nil {
		t.Error("Move with traversal subdir should fail")
	}
}
