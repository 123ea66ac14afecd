package diff

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

const sampleDiff = `diff --git a/hello.go b/hello.go
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/hello.go
@@ -0,0 +1,11 @@
+package main
+
+import "fmt"
+
+func main() {
+	fmt.Println("hello")
+}
+
+func add(a, b int) int {
+	return a + b
+}
diff --git a/src/utils.py b/src/utils.py
index 1234567..abcdefg 100644
--- a/src/utils.py
+++ b/src/utils.py
@@ -10,4 +10,5 @@ def calculate_total(items):
     total = 0
     for item in items:
-        total += item.price
+        total += item.price * item.quantity
+    # quantity aware
     return total
`

func TestParse(t *testing.T) {
	ds, err := Parse(sampleDiff)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(ds.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(ds.Files))
	}

	// First file: new file
	f0 := ds.Files[0]
	if !f0.IsNew {
		t.Error("expected hello.go to be new")
	}
	if f0.Name() != "hello.go" {
		t.Errorf("expected name 'hello.go', got %q", f0.Name())
	}
	if f0.AddedLines != 11 {
		t.Errorf("expected 11 added lines, got %d", f0.AddedLines)
	}
	if len(f0.HunkContexts()) != 0 {
		t.Errorf("expected no hunk contexts, got %v", f0.HunkContexts())
	}

	// Second file: modified
	f1 := ds.Files[1]
	if f1.Name() != "src/utils.py" {
		t.Errorf("expected name 'src/utils.py', got %q", f1.Name())
	}
	if f1.AddedLines != 2 {
		t.Errorf("expected 2 added lines, got %d", f1.AddedLines)
	}
	if f1.DeletedLines != 1 {
		t.Errorf("expected 1 deleted line, got %d", f1.DeletedLines)
	}
	ctx := f1.HunkContexts()
	if len(ctx) != 1 || ctx[0] != "def calculate_total(items):" {
		t.Errorf("unexpected hunk contexts %q", ctx)
	}

	// Stats
	files, added, deleted := ds.Stats()
	if files != 2 {
		t.Errorf("stats: expected 2 files, got %d", files)
	}
	if added != 13 {
		t.Errorf("stats: expected 13 added, got %d", added)
	}
	if deleted != 1 {
		t.Errorf("stats: expected 1 deleted, got %d", deleted)
	}

	sum := ds.Summary()
	if sum.Files != 2 || sum.Insertions != 13 || sum.Deletions != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestParseEmpty(t *testing.T) {
	ds, err := Parse("")
	if err != nil {
		t.Fatalf("Parse empty failed: %v", err)
	}
	if len(ds.Files) != 0 {
		t.Errorf("expected 0 files, got %d", len(ds.Files))
	}
}

func TestFileNameRenamed(t *testing.T) {
	f := &File{OldName: "a.go", NewName: "b.go", IsRenamed: true}
	if f.Name() != "a.go → b.go" {
		t.Errorf("unexpected rename display %q", f.Name())
	}
	if f.Path() != "b.go" {
		t.Errorf("expected path b.go, got %q", f.Path())
	}

	del := &File{OldName: "gone.go", IsDeleted: true}
	if del.Path() != "gone.go" {
		t.Errorf("expected deleted path gone.go, got %q", del.Path())
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@localhost",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@localhost")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.txt")
	run("commit", "-q", "-m", "first")
	return dir
}

func TestStagedDiffAndChangedFiles(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "add", "a.txt")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}

	raw, err := GitDiffStaged(dir, 3)
	if err != nil {
		t.Fatalf("GitDiffStaged: %v", err)
	}
	ds, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Files) != 1 || ds.Files[0].AddedLines != 1 {
		t.Fatalf("unexpected staged diff %q", raw)
	}

	files, err := ChangedFiles(dir, "")
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "a.txt" {
		t.Errorf("unexpected changed files %v", files)
	}
}
