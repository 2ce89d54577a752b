package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueInsightsTracker/internal/testutil"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"serve"}, {"migrate", "rollback"}, {"jobs", "run"}, {"users", "set-role"}, {"users", "list"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestJobsRun_RejectsUnknownJob(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"jobs", "run", "reindex"})
	err := root.Execute()
	assert.Error(t, err)
}

func TestUsersSetRole_RejectsUnknownRole(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"users", "set-role", "a@example.com", "owner"})
	err := root.Execute()
	assert.ErrorContains(t, err, "invalid role")
}

func TestPrintUsers(t *testing.T) {
	repo := repository.NewUserRepository(testutil.OpenInMemoryDB(t, t.Name()))
	ctx := context.Background()
	for _, u := range []*models.User{
		{Email: "admin@example.com", HashedPassword: "x", Role: models.RoleAdmin},
		{Email: "rep@example.com", HashedPassword: "x", Role: models.RoleReporter},
	} {
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	require.NoError(t, printUsers(ctx, repo, &out, 100, 0))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "admin@example.com")
	assert.Contains(t, lines[1], "admin")
	assert.Contains(t, lines[2], "rep@example.com")

	out.Reset()
	require.NoError(t, printUsers(ctx, repo, &out, 1, 1))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "rep@example.com")
}
