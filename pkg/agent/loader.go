package agent

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed profiles/*.json
var embeddedProfiles embed.FS

// LoadEmbedded loads a profile from the embedded data.
func LoadEmbedded(id string) (*Profile, error) {
	filename := fmt.Sprintf("profiles/%s.json", id)
	data, err := embeddedProfiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return parseProfileJSON(id, data)
}

// ListEmbedded returns the IDs of all embedded profiles.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedProfiles.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded profiles: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}

	return ids, nil
}

// LoadFromFile loads a profile from a JSON file on disk.
// This allows deployments to add custom personas.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), ".json")
	return parseProfileJSON(id, data)
}

// LoadFromDirectory loads all profiles from a directory.
func LoadFromDirectory(dir string) ([]*Profile, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	var profiles []*Profile
	for _, file := range files {
		profile, err := LoadFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// parseProfileJSON parses JSON data into a Profile. The fallback ID
// (from the filename) is used when the document carries none.
func parseProfileJSON(fallbackID string, data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}

	if p.ID == "" {
		p.ID = fallbackID
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
