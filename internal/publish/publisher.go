package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/results"
)

// Publisher uploads every artifact of a run directory.
type Publisher struct {
	provider Provider
}

// NewPublisher creates a Publisher over provider.
func NewPublisher(provider Provider) *Publisher {
	return &Publisher{provider: provider}
}

// Name identifies the publisher in logs.
func (p *Publisher) Name() string { return "publish" }

// RunPrefix is the key prefix the artifacts of run are stored under.
func RunPrefix(run *results.TestRun) string {
	return ResolveKey(filepath.Base(run.Dir), run.RunID)
}

// Record uploads the files in the run directory under RunPrefix. Every file
// is attempted; failures are joined.
func (p *Publisher) Record(ctx context.Context, run *results.TestRun) error {
	files, err := artifacts(run.Dir)
	if err != nil {
		return err
	}

	prefix := RunPrefix(run)
	log := logging.With("run", run.RunID)

	var errs []error
	var size int64
	for _, name := range files {
		obj, err := p.provider.Upload(ctx, ResolveKey(prefix, name), filepath.Join(run.Dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		size += obj.Size
		log.Debug("uploaded artifact", "key", obj.Key, "size", obj.Size)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to publish %d of %d artifacts: %w", len(errs), len(files), err)
	}
	log.Info("published report", "prefix", prefix, "files", len(files), "bytes", size)
	return nil
}

// Close releases the provider.
func (p *Publisher) Close() error {
	return p.provider.Close()
}

// artifacts lists the regular files directly inside dir, sorted.
func artifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
