package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
	"stageline/internal/db"
	"stageline/internal/domain"
	"stageline/internal/engine"
)

func TestOpenUsesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(context.Background(), Options{Workspace: dir, FailureThreshold: 3})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 3, c.Config.TCR.FailureThreshold)
	assert.FileExists(t, db.Path(dir))

	issue, err := c.Engine.CreateIssue(context.Background(), engine.IssueCreateOptions{Name: "login", Title: "Login"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageBacklog, issue.Stage)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("project:\n  id: p\ntcr:\n  targets:\n    web:\n      paths: [web/]\n      test_command: npm test\n      coverage:\n        format: cobertura\n        path: cov.xml\n"), 0o644))
	_, err := Open(context.Background(), Options{Workspace: dir})
	require.Error(t, err)
	assert.True(t, domain.IsUsage(err))
	assert.Contains(t, err.Error(), "cobertura")
}

func TestStateStoreLivesInWorkspace(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer c.Close()

	st, err := c.StateStore().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.FailureStreak)
	assert.NotNil(t, c.Checker().Runner)
}
