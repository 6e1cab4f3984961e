package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Repository persists robot configurations.
type Repository interface {
	// List returns every stored robot.
	List(ctx context.Context) ([]Config, error)

	// Save inserts the robot or replaces the stored record with the same ID.
	Save(ctx context.Context, c *Config) error

	// Delete removes a robot by ID.
	// Returns ErrRobotNotFound if the robot does not exist.
	Delete(ctx context.Context, id string) error
}

// fileDocument is the on-disk shape of a robots file.
type fileDocument struct {
	Robots []Config `json:"robots"`
}

// FileRepository stores robots in a JSON document of the form
// {"robots": [...]}. A missing file reads as an empty set; the file is
// rewritten atomically on every change.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository creates a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file path.
func (r *FileRepository) Path() string {
	return r.path
}

// List returns every robot in the file, in file order.
func (r *FileRepository) List(_ context.Context) ([]Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Save inserts or replaces a robot and rewrites the file.
func (r *FileRepository) Save(_ context.Context, c *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	robots, err := r.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range robots {
		if robots[i].ID == c.ID {
			robots[i] = *c.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		robots = append(robots, *c.Clone())
	}

	return r.write(robots)
}

// Delete removes a robot and rewrites the file.
func (r *FileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	robots, err := r.read()
	if err != nil {
		return err
	}

	idx := -1
	for i := range robots {
		if robots[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrRobotNotFound
	}

	return r.write(append(robots[:idx], robots[idx+1:]...))
}

func (r *FileRepository) read() ([]Config, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading robots file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing robots file: %w", err)
	}
	return doc.Robots, nil
}

func (r *FileRepository) write(robots []Config) error {
	if robots == nil {
		robots = []Config{}
	}

	data, err := json.MarshalIndent(fileDocument{Robots: robots}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding robots file: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating robots directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".robots-*.json")
	if err != nil {
		return fmt.Errorf("writing robots file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing robots file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing robots file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replacing robots file: %w", err)
	}
	return nil
}

// sortByID orders robots by ID for deterministic listings.
func sortByID(robots []Config) {
	sort.Slice(robots, func(i, j int) bool { return robots[i].ID < robots[j].ID })
}
