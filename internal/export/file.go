// Package export writes issues as markdown files with YAML frontmatter.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

const (
	fileMode      = 0o600
	maxSlugLength = 50
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Write serializes an issue to a markdown file. The description becomes the
// body; every other field goes into the frontmatter.
func Write(path string, it *issue.Issue) error {
	fmIssue := it.Clone()
	fmIssue.Description = ""
	fm, err := yaml.Marshal(fmIssue)
	if err != nil {
		return fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	if it.Description != "" {
		buf.WriteString("\n")
		buf.WriteString(it.Description)
		if !strings.HasSuffix(it.Description, "\n") {
			buf.WriteString("\n")
		}
	}

	return os.WriteFile(path, buf.Bytes(), fileMode)
}

// Read parses an exported issue file. A single trailing newline of the body
// is not part of the description.
func Read(path string) (*issue.Issue, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from export directory
	if err != nil {
		return nil, fmt.Errorf("reading issue file: %w", err)
	}

	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var it issue.Issue
	if err := yaml.Unmarshal(fm, &it); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}
	it.Description = strings.TrimSuffix(body, "\n")
	return &it, nil
}

// ReadDir returns the path of every exported issue in dir, keyed by issue
// ID. Files that fail to parse are skipped. A missing directory yields an empty map.
func ReadDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading export directory: %w", err)
	}

	paths := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		it, err := Read(path)
		if err != nil || it.ID == "" {
			continue
		}
		paths[it.ID] = path
	}
	return paths, nil
}

// splitFrontmatter splits a markdown file into YAML frontmatter and body.
// The file must start with "---\n".
func splitFrontmatter(data []byte) ([]byte, string, error) {
	content := string(data)

	if !strings.HasPrefix(content, "---\n") {
		return nil, "", errors.New("file does not start with YAML frontmatter (---)")
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		if !strings.HasSuffix(rest, "\n---") {
			return nil, "", errors.New("unclosed frontmatter (missing closing ---)")
		}
		idx = len(rest) - len("\n---")
	}

	fm := rest[:idx]
	body := ""
	if closingEnd := idx + len("\n---\n"); closingEnd < len(rest) {
		body = strings.TrimLeft(rest[closingEnd:], "\n")
	}
	return []byte(fm), body, nil
}

// Slug converts a summary to a filename-friendly slug.
func Slug(summary string) string {
	slug := strings.ToLower(summary)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLength {
		truncated := slug[:maxSlugLength]
		// Only trim to the last hyphen if the cut is mid-word.
		if slug[maxSlugLength] != '-' {
			if idx := strings.LastIndex(truncated, "-"); idx > 0 {
				truncated = truncated[:idx]
			}
		}
		slug = strings.TrimRight(truncated, "-")
	}
	return slug
}

// Filename builds the file name of an exported issue, e.g. "WEB-12-login-form.md".
func Filename(key, slug string) string {
	if slug == "" {
		return key + ".md"
	}
	return key + "-" + slug + ".md"
}
