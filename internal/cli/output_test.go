package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

func TestDeploymentListTruncatesLongNames(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf, format: config.FormatTable}

	long := "this-is-a-very-long-deployment-name-that-should-be-truncated"
	err := p.deploymentList(&controlplane.DeploymentList{Resources: []model.Deployment{{
		ID:        "abc-123",
		Name:      long,
		Source:    model.SourceGitHub,
		Status:    model.DeploymentReady,
		CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}}})
	assert.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, long)
	assert.Contains(t, out, long[:27]+"...")
	assert.Contains(t, out, "2024-01-15 10:30:00")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestEmptyListings(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf, format: config.FormatTable}

	assert.NoError(t, p.deploymentList(&controlplane.DeploymentList{}))
	assert.NoError(t, p.revisions(nil))
	assert.Equal(t, "No deployments found.\nNo revisions found.\n", buf.String())
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(strings.NewReader("YES\n"), &out, "svc")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "delete deployment 'svc'")

	ok, err = confirm(strings.NewReader(""), &out, "svc")
	assert.NoError(t, err)
	assert.False(t, ok)
}
