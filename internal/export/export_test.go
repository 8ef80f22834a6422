package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	issues []*issue.Issue
	err    error
}

func (f *fakeSource) ListIssues(_ context.Context, _ string, _ workflow.ListOptions) ([]*issue.Issue, error) {
	return f.issues, f.err
}

func sampleIssue(seq int, summary string) *issue.Issue {
	points := 5
	return &issue.Issue{
		ID:          "id-" + summary,
		Key:         issue.FormatKey("WEB", seq),
		ProjectID:   "WEB",
		Type:        issue.TypeStory,
		Status:      issue.StatusInProgress,
		Priority:    issue.PriorityHigh,
		Summary:     summary,
		StoryPoints: &points,
		ReporterID:  "alice",
		CreatedAt:   t0,
		UpdatedAt:   t0,
		StartedAt:   &t0,
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WEB-1.md")
	it := sampleIssue(1, "Login form")
	it.Description = "## Acceptance\n\n- email login"

	require.NoError(t, Write(path, it))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.Contains(t, content, "key: WEB-1\n")
	assert.Contains(t, content, "story_points: 5\n")
	assert.NotContains(t, content, "description:")
	assert.True(t, strings.HasSuffix(content, "---\n\n## Acceptance\n\n- email login\n"))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, it.Key, got.Key)
	assert.Equal(t, it.Status, got.Status)
	assert.Equal(t, it.Description, got.Description)
	assert.Equal(t, 5, got.Points())
	assert.True(t, it.CreatedAt.Equal(got.CreatedAt))
}

func TestReadWithoutTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WEB-7.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nid: id-7\nkey: WEB-7\nstatus: done\n---"), 0o600))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "WEB-7", got.Key)
	assert.Equal(t, issue.StatusDone, got.Status)
	assert.Empty(t, got.Description)
}

func TestSplitFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantFM   string
		wantBody string
		wantErr  bool
	}{
		{name: "with body", input: "---\nkey: A-1\n---\n\nbody\n", wantFM: "key: A-1", wantBody: "body\n"},
		{name: "no body", input: "---\nkey: A-1\n---\n", wantFM: "key: A-1"},
		{name: "closing at EOF", input: "---\nkey: A-1\n---", wantFM: "key: A-1"},
		{name: "multi-line closing at EOF", input: "---\nkey: A-1\nsummary: Login\n---", wantFM: "key: A-1\nsummary: Login"},
		{name: "missing opening", input: "key: A-1\n", wantErr: true},
		{name: "unclosed", input: "---\nkey: A-1\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := splitFrontmatter([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFM, string(fm))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		summary string
		want    string
	}{
		{"Login form", "login-form"},
		{"  Fix: crash on save!! ", "fix-crash-on-save"},
		{"Ünïcode only", "n-code-only"},
		{"!!!", ""},
		{strings.Repeat("word ", 20), "word-word-word-word-word-word-word-word-word-word"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.summary), tt.summary)
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "WEB-12-login-form.md", Filename("WEB-12", "login-form"))
	assert.Equal(t, "WEB-12.md", Filename("WEB-12", ""))
}

func TestProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	login := sampleIssue(1, "Login form")
	crash := sampleIssue(2, "Fix crash")
	src := &fakeSource{issues: []*issue.Issue{login, crash}}

	res, err := Project(context.Background(), src, "WEB", dir, false)
	require.NoError(t, err)
	assert.Equal(t, dir, res.Dir)
	assert.Equal(t, []string{
		filepath.Join(dir, "WEB-1-login-form.md"),
		filepath.Join(dir, "WEB-2-fix-crash.md"),
	}, res.Written)
	assert.Empty(t, res.Removed)

	// Renamed summary replaces the old file.
	renamed := login.Clone()
	renamed.Summary = "Sign-in form"
	src.issues = []*issue.Issue{renamed, crash}
	res, err = Project(context.Background(), src, "WEB", dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "WEB-1-login-form.md")}, res.Removed)
	assert.FileExists(t, filepath.Join(dir, "WEB-1-sign-in-form.md"))
	assert.NoFileExists(t, filepath.Join(dir, "WEB-1-login-form.md"))

	// Deleted issues stay without prune and go with it.
	src.issues = []*issue.Issue{renamed}
	_, err = Project(context.Background(), src, "WEB", dir, false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "WEB-2-fix-crash.md"))

	res, err = Project(context.Background(), src, "WEB", dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "WEB-2-fix-crash.md")}, res.Removed)
	assert.NoFileExists(t, filepath.Join(dir, "WEB-2-fix-crash.md"))
}

func TestProjectIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(notes, []byte("# not an issue\n"), 0o600))

	src := &fakeSource{issues: []*issue.Issue{sampleIssue(1, "Login form")}}
	_, err := Project(context.Background(), src, "WEB", dir, true)
	require.NoError(t, err)
	assert.FileExists(t, notes)
}

func TestProjectSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	_, err := Project(context.Background(), src, "WEB", t.TempDir(), false)
	assert.EqualError(t, err, "boom")
}
