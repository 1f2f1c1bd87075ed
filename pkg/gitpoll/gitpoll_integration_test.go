// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gitpoll

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// initRepo builds a throwaway git repository with one commit, mirroring
// the teacher's git-fixture integration tests.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	run("add", "a.go")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestReadGitState_NoOriginLeavesOriginSHAEmpty(t *testing.T) {
	dir := initRepo(t)
	st, err := ReadGitState(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, st.HeadSHA)
	require.Equal(t, "main", st.Branch)
	require.Empty(t, st.OriginSHA, "no configured origin/main in this fixture")
	require.Empty(t, st.MergeBaseSHA)
}

func TestChangedFiles_EmptyWhenRefsEqual(t *testing.T) {
	dir := initRepo(t)
	st, err := ReadGitState(context.Background(), dir)
	require.NoError(t, err)

	files, err := changedFiles(context.Background(), dir, st.HeadSHA, st.HeadSHA)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestChangedFiles_ReportsModifiedFileBetweenCommits(t *testing.T) {
	dir := initRepo(t)
	before, err := ReadGitState(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a\n"), 0o644))
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("add", "b.go")
	run("commit", "-q", "-m", "add b")

	after, err := ReadGitState(context.Background(), dir)
	require.NoError(t, err)

	files, err := changedFiles(context.Background(), dir, before.HeadSHA, after.HeadSHA)
	require.NoError(t, err)
	require.Equal(t, []string{"b.go"}, files)
}

func TestRepoFileCount_CountsTrackedFiles(t *testing.T) {
	dir := initRepo(t)
	require.Equal(t, 1, repoFileCount(context.Background(), dir))
}

func TestDefaultOptions_MatchesSpecDefaults(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, DefaultBaseInterval, opts.BaseInterval)
	require.Equal(t, DefaultBranchInterval, opts.BranchInterval)
	require.True(t, opts.AutoUpdate)
}
