package reposcan

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.txt")
	run("commit", "-m", "initial")
	return dir
}

func TestHashStableAcrossCalls(t *testing.T) {
	dir := initRepo(t)
	h1, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q then %q", h1, h2)
	}
}

func TestHashChangesOnDirtyWorktree(t *testing.T) {
	dir := initRepo(t)
	clean, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	dirty, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if clean == dirty {
		t.Fatal("expected hash to change once the worktree is dirty")
	}
}

func TestHashChangesOnNewCommit(t *testing.T) {
	dir := initRepo(t)
	before, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("new file"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "add", "b.txt")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}
	cmd = exec.Command("git", "-c", "user.email=test@example.com", "-c", "user.name=Test", "commit", "-m", "second")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}

	after, err := Hash(context.Background(), dir)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if before == after {
		t.Fatal("expected hash to change after a new commit")
	}
}
