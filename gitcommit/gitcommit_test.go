package gitcommit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("git init: %v", err)
	}
	return dir
}

func TestNotifyNoopWithoutRepository(t *testing.T) {
	c := New(t.TempDir(), "rltbl", "rltbl@example.com")
	if err := c.Notify(context.Background(), "penguin", "user1", "Add row 1"); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}
}

func TestNotifySkipsWhenClean(t *testing.T) {
	dir := initRepo(t)
	c := New(dir, "rltbl", "rltbl@example.com")
	if err := c.Notify(context.Background(), "penguin", "user1", "Add row 1"); err != nil {
		t.Fatalf("notify on empty clean repo: %v", err)
	}
}

func TestNotifyCommitsAndAmendsSameDay(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "penguin.tsv"), []byte("a\tb\n1\t2\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	fixed := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	Now = func() time.Time { return fixed }
	defer func() { Now = time.Now }()

	c := New(dir, "rltbl", "rltbl@example.com")
	if err := c.Notify(context.Background(), "penguin", "user1", "Add row 1"); err != nil {
		t.Fatalf("first notify: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "penguin.tsv"), []byte("a\tb\n1\t2\n3\t4\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	Now = func() time.Time { return fixed.Add(time.Hour) }
	if err := c.Notify(context.Background(), "penguin", "user1", "Add row 2"); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("commit object: %v", err)
	}
	if commit.NumParents() != 0 {
		t.Fatalf("expected the second same-day edit to amend into a single root commit, got %d parents", commit.NumParents())
	}
}
