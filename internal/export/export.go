package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

const dirMode = 0o750

// Source lists the issues to export.
type Source interface {
	ListIssues(ctx context.Context, projectID string, opts workflow.ListOptions) ([]*issue.Issue, error)
}

// Result summarizes an export run.
type Result struct {
	Dir     string   `json:"dir"`
	Written []string `json:"written"`
	Removed []string `json:"removed,omitempty"`
}

// Project writes one file per issue of the project into dir. Files of
// issues whose summary changed are renamed. With prune, files of issues
// that no longer exist are removed.
func Project(ctx context.Context, src Source, projectID, dir string, prune bool) (*Result, error) {
	issues, err := src.ListIssues(ctx, projectID, workflow.ListOptions{SortBy: "created"})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	existing, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}

	res := &Result{Dir: dir, Written: make([]string, 0, len(issues))}
	for _, it := range issues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, Filename(it.Key, Slug(it.Summary)))
		if err := Write(path, it); err != nil {
			return nil, fmt.Errorf("writing %s: %w", it.Key, err)
		}
		res.Written = append(res.Written, path)

		if old, ok := existing[it.ID]; ok && old != path {
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing stale %s: %w", old, err)
			}
			res.Removed = append(res.Removed, old)
		}
		delete(existing, it.ID)
	}

	if prune {
		for _, old := range existing {
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("pruning %s: %w", old, err)
			}
			res.Removed = append(res.Removed, old)
		}
	}
	return res, nil
}
