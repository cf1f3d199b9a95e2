// Package gitcommit implements the action engine's git side effect:
// every committed Do/Undo/Redo against a version-controlled database
// directory gets a matching commit, amending the previous one instead
// of piling up a new commit per edit when it was made by the same
// author earlier the same (local) day.
package gitcommit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"rltbl.sh/rltbl/errkind"
)

// Now is the clock gitcommit stamps commits with; overridable in tests
// the way store.Now is.
var Now = func() time.Time { return time.Now() }

// Committer implements action.GitNotifier over a working tree rooted
// at RepoPath — the directory holding the embedded database file.
type Committer struct {
	RepoPath    string
	AuthorName  string
	AuthorEmail string
}

// New builds a Committer. RepoPath need not yet be a git repository;
// Notify no-ops silently when it isn't, so git integration stays
// opt-in (a plain `rltbl init` with no `git init` first works exactly
// as before).
func New(repoPath, authorName, authorEmail string) *Committer {
	return &Committer{RepoPath: repoPath, AuthorName: authorName, AuthorEmail: authorEmail}
}

// Notify stages every change under RepoPath and commits it, amending
// the HEAD commit when it was authored by the same author earlier the
// same local day — so a burst of edits in one sitting collapses into
// one commit instead of one per action.
func (c *Committer) Notify(ctx context.Context, table, user, description string) error {
	repo, err := git.PlainOpen(c.RepoPath)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil
		}
		return errkind.Wrap(errkind.IO, "open git repository", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errkind.Wrap(errkind.IO, "open git worktree", err)
	}
	if _, err := wt.Add("."); err != nil {
		return errkind.Wrap(errkind.IO, "git add", err)
	}

	status, err := wt.Status()
	if err != nil {
		return errkind.Wrap(errkind.IO, "git status", err)
	}
	if status.IsClean() {
		return nil
	}

	now := Now()
	sig := &object.Signature{Name: c.AuthorName, Email: c.AuthorEmail, When: now}

	amend := false
	if head, err := repo.Head(); err == nil {
		if prev, err := repo.CommitObject(head.Hash()); err == nil {
			amend = prev.Author.Name == c.AuthorName && prev.Author.Email == c.AuthorEmail && sameLocalDay(prev.Author.When, now)
		}
	}

	// An amend replaces the prior commit's message outright rather than
	// appending, so the day's commit always summarizes its latest edit.
	message := fmt.Sprintf("%s: %s", user, description)

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: sig,
		Amend:  amend,
	})
	if err != nil {
		return errkind.Wrap(errkind.IO, "git commit", err)
	}
	return nil
}

func sameLocalDay(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
