package app

import (
	"path/filepath"
	"strings"
)

// splitAuthor parses a "Name <email>" RLTBL_GIT_AUTHOR value into its
// parts; a value with no "<...>" suffix is treated as a bare name with
// no email.
func splitAuthor(author string) (name, email string) {
	author = strings.TrimSpace(author)
	start := strings.LastIndex(author, "<")
	end := strings.LastIndex(author, ">")
	if start < 0 || end < start {
		return author, ""
	}
	return strings.TrimSpace(author[:start]), author[start+1 : end]
}

// repoDir derives the working tree gitcommit.Committer should operate
// on from an embedded-filename connection string: the directory the
// database file lives in, or "." for a postgres URL.
func repoDir(conn string) string {
	if strings.Contains(conn, "://") {
		return "."
	}
	dir := filepath.Dir(conn)
	if dir == "" {
		return "."
	}
	return dir
}
