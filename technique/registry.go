package technique

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// Sentinel errors for the technique registry.
var (
	ErrAlreadyRegistered = errors.New("technique already registered")
	ErrNotFound          = errors.New("technique not found")
	ErrConflict          = errors.New("technique registration conflicts with an existing implementation")
)

// entry pairs an immutable descriptor with its implementation.
type entry struct {
	descriptor types.TechniqueDescriptor
	impl       Technique
}

// Registry is the process-wide technique catalog (spec §4.4 Registry).
// Descriptors are immutable after registration; ids are unique.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *zap.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger.With(zap.String("component", "technique_registry")),
	}
}

// Register adds a technique. Re-registering the same (id, impl) pair with
// an equal descriptor is idempotent; any other registration under an id
// already bound (a different implementation or a different descriptor)
// is rejected with ErrConflict.
func (r *Registry) Register(descriptor types.TechniqueDescriptor, impl Technique) error {
	if descriptor.ID == "" {
		return fmt.Errorf("technique descriptor must have a non-empty id")
	}
	if impl == nil {
		return fmt.Errorf("technique %s: implementation must not be nil", descriptor.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[descriptor.ID]; ok {
		if descriptorsEqual(existing.descriptor, descriptor) && existing.impl == impl {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConflict, descriptor.ID)
	}

	r.entries[descriptor.ID] = entry{descriptor: descriptor, impl: impl}
	r.logger.Info("technique registered",
		zap.String("id", descriptor.ID),
		zap.Int("priority", descriptor.Priority),
		zap.Bool("enabled", descriptor.Enabled))
	return nil
}

// Unregister removes a technique by id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// Get returns the descriptor+implementation for id.
func (r *Registry) Get(id string) (types.TechniqueDescriptor, Technique, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.descriptor, e.impl, ok
}

// ListEnabled returns enabled descriptors sorted by priority ascending,
// ties broken by id (spec §3: "lower priority number applies first").
func (r *Registry) ListEnabled() []types.TechniqueDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.TechniqueDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.descriptor.Enabled {
			out = append(out, e.descriptor)
		}
	}
	sortDescriptors(out)
	return out
}

// IsEnabled reports whether id names a registered, enabled technique.
// Satisfies classifier.TechniqueRanker.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.descriptor.Enabled
}

// Priority returns id's registered priority. Satisfies
// classifier.TechniqueRanker.
func (r *Registry) Priority(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, false
	}
	return e.descriptor.Priority, true
}

// Validate reports whether every id in ids names an enabled technique,
// returning the offending ids otherwise.
func (r *Registry) Validate(ids []string) (unknown []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok || !e.descriptor.Enabled {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// descriptorsEqual compares everything but DefaultParameters, which is
// a map and not directly comparable; re-registering the same id with
// the same shape but a different parameters map is still idempotent.
func descriptorsEqual(a, b types.TechniqueDescriptor) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Priority == b.Priority && a.Enabled == b.Enabled
}

func sortDescriptors(ds []types.TechniqueDescriptor) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Priority != ds[j].Priority {
			return ds[i].Priority < ds[j].Priority
		}
		return ds[i].ID < ds[j].ID
	})
}
