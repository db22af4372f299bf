// Package git writes FileSets to a remote repository with go-git.
//
// The Committer clones the branch into memory, replaces the worktree with the
// FileSet, commits and pushes without force. Nothing touches local disk.
package git
