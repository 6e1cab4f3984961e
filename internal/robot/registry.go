package robot

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RemoveHook is called after a robot has been removed or replaced so that
// connection handles cached for it can be torn down.
type RemoveHook func(id string)

// Registry holds the configured robots. It wraps a Repository with an
// in-memory cache that is the source of truth for lookups; every mutation is
// validated, persisted and only then applied to the cache.
//
// All public methods are thread-safe. Readers get copies, so a fan-out
// iterating a snapshot never observes a concurrent add or remove.
type Registry struct {
	repo    Repository
	cache   map[string]*Config
	cacheMu sync.RWMutex
	logger  Logger

	hooks   []RemoveHook
	hooksMu sync.RWMutex
}

// NewRegistry creates a new robot registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Config),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnRemove registers a hook run after a robot is removed or replaced.
func (r *Registry) OnRemove(hook RemoveHook) {
	r.hooksMu.Lock()
	r.hooks = append(r.hooks, hook)
	r.hooksMu.Unlock()
}

// Load reads every robot from the repository, validates each one and
// replaces the cache. Any invalid record fails the whole load so a bad file
// is reported at startup rather than at first dispatch.
func (r *Registry) Load(ctx context.Context) error {
	robots, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading robots: %w", err)
	}

	cache := make(map[string]*Config, len(robots))
	for i := range robots {
		c := robots[i].Clone()
		c.ApplyDefaults()
		if err := Validate(c); err != nil {
			return fmt.Errorf("loading robot %q: %w", c.ID, err)
		}
		if _, dup := cache[c.ID]; dup {
			return fmt.Errorf("loading robots: %w: duplicate id %q", ErrInvalidRobot, c.ID)
		}
		cache[c.ID] = c
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("robot registry loaded", "count", len(cache))
	return nil
}

// Get returns a copy of the robot with the given ID.
func (r *Registry) Get(id string) (*Config, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	c, ok := r.cache[id]
	if !ok {
		return nil, ErrRobotNotFound
	}
	return c.Clone(), nil
}

// List returns copies of every robot, ordered by ID.
func (r *Registry) List() []Config {
	return r.snapshot(func(*Config) bool { return true })
}

// Enabled returns copies of every enabled robot, ordered by ID.
func (r *Registry) Enabled() []Config {
	return r.snapshot(func(c *Config) bool { return c.Enabled })
}

// Count returns the number of configured robots.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) snapshot(keep func(*Config) bool) []Config {
	r.cacheMu.RLock()
	robots := make([]Config, 0, len(r.cache))
	for _, c := range r.cache {
		if keep(c) {
			robots = append(robots, *c.Clone())
		}
	}
	r.cacheMu.RUnlock()

	sortByID(robots)
	return robots
}

// Add validates and persists a robot. An empty ID is generated. A robot
// with an existing ID replaces the stored one, and the previous robot's
// connection handles are released through the remove hooks.
//
// The caller's value is copied; later changes to it have no effect.
func (r *Registry) Add(ctx context.Context, c *Config) (*Config, error) {
	if c == nil {
		return nil, ErrInvalidRobot
	}

	robot := c.Clone()
	if robot.ID == "" {
		robot.ID = GenerateID()
	}
	robot.ApplyDefaults()

	if err := Validate(robot); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	_, replaced := r.cache[robot.ID]
	if err := r.repo.Save(ctx, robot); err != nil {
		r.cacheMu.Unlock()
		return nil, fmt.Errorf("persisting robot %s: %w", robot.ID, err)
	}
	r.cache[robot.ID] = robot
	r.cacheMu.Unlock()

	if replaced {
		r.runHooks(robot.ID)
		r.logger.Info("robot replaced", "id", robot.ID, "name", robot.Name, "protocol", robot.Protocol)
	} else {
		r.logger.Info("robot added", "id", robot.ID, "name", robot.Name, "protocol", robot.Protocol)
	}
	return robot.Clone(), nil
}

// Remove deletes a robot and releases its connection handles.
// Returns ErrRobotNotFound if the robot does not exist.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.cacheMu.Lock()
	if _, ok := r.cache[id]; !ok {
		r.cacheMu.Unlock()
		return ErrRobotNotFound
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		r.cacheMu.Unlock()
		return fmt.Errorf("deleting robot %s: %w", id, err)
	}
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.runHooks(id)
	r.logger.Info("robot removed", "id", id)
	return nil
}

// SetEnabled toggles whether a robot takes part in fan-out.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	current, ok := r.cache[id]
	if !ok {
		return ErrRobotNotFound
	}
	if current.Enabled == enabled {
		return nil
	}

	updated := current.Clone()
	updated.Enabled = enabled
	if err := r.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("persisting robot %s: %w", id, err)
	}
	r.cache[id] = updated

	r.logger.Info("robot enabled state changed", "id", id, "enabled", enabled)
	return nil
}

func (r *Registry) runHooks(id string) {
	r.hooksMu.RLock()
	hooks := append([]RemoveHook(nil), r.hooks...)
	r.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(id)
	}
}
