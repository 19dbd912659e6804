package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"manimate/internal/services"
)

// Job is one script document found in the work directory.
type Job struct {
	// ID is the base filename, which is also the ledger entry for the job.
	ID   string
	Path string
	Done bool
}

// DoneSet supplies the completed job IDs. *ledger.Ledger satisfies it.
type DoneSet interface {
	Done() (map[string]struct{}, error)
}

// Scan lists every script in workDir with the given extension, marking the
// ones the ledger records as done. Results are sorted by filename.
func Scan(workDir, ext string, ledger DoneSet) ([]Job, error) {
	root, err := normalize(workDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discovery", "resolve", "Failed to resolve work directory", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discovery", "list", fmt.Sprintf("Failed to list work directory %s", root), err)
	}

	completed := map[string]struct{}{}
	if ledger != nil {
		ids, err := ledger.Done()
		if err != nil {
			return nil, err
		}
		for id := range ids {
			p, err := normalize(filepath.Join(root, id))
			if err != nil {
				continue
			}
			completed[p] = struct{}{}
		}
	}

	ext = strings.ToLower(ext)
	jobs := make([]Job, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if ext != "" && strings.ToLower(filepath.Ext(name)) != ext {
			continue
		}
		p, err := normalize(filepath.Join(root, name))
		if err != nil {
			continue
		}
		_, done := completed[p]
		jobs = append(jobs, Job{ID: name, Path: p, Done: done})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

// PendingJobs returns the scripts in workDir not yet recorded in the ledger,
// sorted ascending by filename.
func PendingJobs(workDir, ext string, ledger DoneSet) ([]Job, error) {
	all, err := Scan(workDir, ext, ledger)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, job := range all {
		if !job.Done {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
