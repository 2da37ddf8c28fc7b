package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/thruflo/sightline/internal/logging"
)

// File names inside a run directory.
const (
	ResultsFile      = "results.json"
	ConversationFile = "conversation.json"
)

var (
	// ErrAlreadySealed is returned when a sealed run is completed or
	// appended to again.
	ErrAlreadySealed = errors.New("test run is already sealed")
	// ErrDirExists is returned by Open under the reject collision policy.
	ErrDirExists = errors.New("report directory already exists")
)

// Collision policies for an existing run directory.
const (
	CollisionReuse  = "reuse"
	CollisionSuffix = "suffix"
	CollisionReject = "reject"
)

// Image is a screenshot that may or may not decode to raw image bytes.
type Image interface {
	Decode() ([]byte, error)
}

// Renderer projects a sealed run into another artifact.
type Renderer interface {
	Render(run *TestRun) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(run *TestRun) error

func (f RendererFunc) Render(run *TestRun) error { return f(run) }

// Options configures Open.
type Options struct {
	// Root is the directory run directories are created under.
	Root string
	// Collision is one of the Collision* policies. Empty means reuse.
	Collision string
	// URL is recorded on the run for reference.
	URL string
	// Renderers run after results.json is written.
	Renderers []Renderer
	// Now overrides the clock.
	Now func() time.Time
}

// Recorder accumulates a run and persists it once on Complete.
type Recorder struct {
	mu        sync.Mutex
	run       TestRun
	sealed    bool
	renderers []Renderer
	now       func() time.Time
	log       *logging.Logger
}

// Open creates the run directory for name and starts the run.
func Open(name string, opts Options) (*Recorder, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	dir, err := prepareDir(filepath.Join(opts.Root, Slug(name)), opts.Collision, start)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		run: TestRun{
			Name:      name,
			Status:    RunRunning,
			StartTime: start,
			Steps:     []StepResult{},
			RunID:     uuid.NewString(),
			URL:       opts.URL,
			Dir:       dir,
		},
		renderers: opts.Renderers,
		now:       now,
	}
	r.log = logging.WithFields(map[string]any{"test": name, "run": r.run.RunID})
	r.log.Debug("report directory ready", "dir", dir)
	return r, nil
}

func prepareDir(dir, policy string, start time.Time) (string, error) {
	_, statErr := os.Stat(dir)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return "", fmt.Errorf("failed to stat report directory: %w", statErr)
	}

	switch policy {
	case CollisionReject:
		if exists {
			return "", fmt.Errorf("%w: %s", ErrDirExists, dir)
		}
	case CollisionSuffix:
		if exists {
			base := dir + "_" + start.UTC().Format("20060102T150405Z")
			dir = base
			for i := 2; ; i++ {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					break
				}
				dir = fmt.Sprintf("%s-%d", base, i)
			}
		}
	case CollisionReuse, "":
		if exists {
			logging.Debug("reusing report directory", "dir", dir)
		}
	default:
		return "", fmt.Errorf("unknown collision policy: %q", policy)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	return dir, nil
}

// Slug turns a test name into a directory name. Whitespace becomes "_" and
// anything other than letters, digits, '.', '_' and '-' becomes "-".
func Slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	slug := sb.String()
	if strings.Trim(slug, ".") == "" {
		return "unnamed"
	}
	return slug
}

// Dir returns the run directory.
func (r *Recorder) Dir() string {
	return r.run.Dir
}

// Run returns a snapshot of the run.
func (r *Recorder) Run() TestRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Recorder) snapshot() TestRun {
	run := r.run
	run.Steps = make([]StepResult, len(r.run.Steps))
	copy(run.Steps, r.run.Steps)
	return run
}

// AddStep appends a step and returns its 1-based index. A screenshot that
// does not decode is dropped and the step is recorded without one; only
// file I/O failures are returned.
func (r *Recorder) AddStep(description string, status Status, shot Image) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return 0, ErrAlreadySealed
	}

	step := StepResult{
		Step:        len(r.run.Steps) + 1,
		Description: description,
		Status:      status,
		Timestamp:   r.now(),
	}

	if shot != nil {
		data, err := shot.Decode()
		if err != nil {
			r.log.Debug("screenshot not recorded", "step", step.Step, "error", err)
		} else {
			path := filepath.Join(r.run.Dir, fmt.Sprintf("step_%d.png", step.Step))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return 0, fmt.Errorf("failed to write screenshot: %w", err)
			}
			step.Screenshot = path
		}
	}

	r.run.Steps = append(r.run.Steps, step)
	r.log.Debug("step recorded", "step", step.Step, "status", string(status))
	return step.Step, nil
}

// Complete seals the run with status and persists it. It may be called once;
// later calls return the sealed run with ErrAlreadySealed and touch no files.
func (r *Recorder) Complete(status RunStatus) (*TestRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		run := r.snapshot()
		return &run, ErrAlreadySealed
	}
	if !status.Terminal() {
		return nil, fmt.Errorf("cannot complete run with status %q", status)
	}

	end := r.now()
	if end.Before(r.run.StartTime) {
		end = r.run.StartTime
	}
	r.run.EndTime = end
	r.run.DurationSeconds = end.Sub(r.run.StartTime).Seconds()
	r.run.Status = status
	r.sealed = true

	run := r.snapshot()
	if err := writeJSON(filepath.Join(run.Dir, ResultsFile), &run); err != nil {
		return &run, err
	}

	var errs []error
	for _, renderer := range r.renderers {
		if err := renderer.Render(&run); err != nil {
			errs = append(errs, err)
		}
	}

	r.log.Info("run complete", "status", string(status), "steps", len(run.Steps), "duration", fmt.Sprintf("%.2fs", run.DurationSeconds))
	return &run, errors.Join(errs...)
}

// WriteArtifact writes v as indented JSON to name inside the run directory.
func (r *Recorder) WriteArtifact(name string, v any) (string, error) {
	path := filepath.Join(r.run.Dir, name)
	if err := writeJSON(path, v); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load reads a persisted run from dir.
func Load(dir string) (*TestRun, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no results found in %s", dir)
		}
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var run TestRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	run.Dir = dir
	return &run, nil
}
