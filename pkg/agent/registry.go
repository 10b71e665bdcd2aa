package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the set of available profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
	}
}

// LoadBuiltIn loads all embedded profiles into the registry.
func (r *Registry) LoadBuiltIn() error {
	ids, err := ListEmbedded()
	if err != nil {
		return fmt.Errorf("failed to list embedded profiles: %w", err)
	}

	for _, id := range ids {
		profile, err := LoadEmbedded(id)
		if err != nil {
			return fmt.Errorf("failed to load profile %q: %w", id, err)
		}
		r.Register(profile)
	}

	return nil
}

// LoadCustomDir loads profiles from a directory, overriding any
// built-in profile with the same ID.
func (r *Registry) LoadCustomDir(dir string) error {
	profiles, err := LoadFromDirectory(dir)
	if err != nil {
		return err
	}

	for _, profile := range profiles {
		r.Register(profile)
	}

	return nil
}

// Register adds a profile to the registry, replacing any existing
// profile with the same ID.
func (r *Registry) Register(profile *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.ID] = profile
}

// Get retrieves a profile by ID.
func (r *Registry) Get(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return profile, nil
}

// Resolve returns the profile for an ID, falling back to the default
// when the ID is empty or unknown.
func (r *Registry) Resolve(id string) (*Profile, error) {
	if id != "" {
		if profile, err := r.Get(id); err == nil {
			return profile, nil
		}
	}
	return r.Get(DefaultProfileID)
}

// List returns all registered profile IDs, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Describe returns all profiles with their descriptions.
func (r *Registry) Describe() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]string, len(r.profiles))
	for id, profile := range r.profiles {
		result[id] = profile.Description
	}
	return result
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
