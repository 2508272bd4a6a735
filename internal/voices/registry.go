// Package voices provides the voice profile registry.
//
// The registry is populated once at process start from a TOML seed file and
// is immutable afterwards, so concurrent reads need no synchronization.
package voices

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/voxbr/tts-gateway/internal/core"
)

// Static errors.
var (
	// ErrNoVoices indicates the seed file declared no voices.
	ErrNoVoices = errors.New("voice seed contains no voices")
	// ErrDuplicateVoice indicates two seed entries share an id.
	ErrDuplicateVoice = errors.New("duplicate voice id in seed")
	// ErrIncompleteVoice indicates a seed entry is missing a required field.
	ErrIncompleteVoice = errors.New("voice entry missing required field")
	// ErrUnknownBackend indicates a seed entry names an unsupported backend.
	ErrUnknownBackend = errors.New("unknown voice backend")
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Language string
	Backend  core.Backend
}

// Registry holds the known voice profiles, resolvable by id in O(1) and
// listable in registration order.
type Registry struct {
	byID    map[string]core.VoiceProfile
	ordered []core.VoiceProfile
}

type seedFile struct {
	Voices []core.VoiceProfile `toml:"voices"`
}

// LoadFile reads a TOML seed file with [[voices]] tables and builds a registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice seed file: %w", err)
	}

	var seed seedFile

	err = toml.Unmarshal(data, &seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse voice seed file: %w", err)
	}

	return New(seed.Voices)
}

// New builds a registry from the given profiles, validating each entry.
func New(profiles []core.VoiceProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, ErrNoVoices
	}

	registry := &Registry{
		byID:    make(map[string]core.VoiceProfile, len(profiles)),
		ordered: make([]core.VoiceProfile, 0, len(profiles)),
	}

	for _, profile := range profiles {
		err := validateProfile(profile)
		if err != nil {
			return nil, err
		}

		_, exists := registry.byID[profile.ID]
		if exists {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateVoice, profile.ID)
		}

		registry.byID[profile.ID] = profile
		registry.ordered = append(registry.ordered, profile)
	}

	return registry, nil
}

// Resolve returns the profile for the given id.
func (r *Registry) Resolve(voiceID string) (core.VoiceProfile, error) {
	profile, ok := r.byID[voiceID]
	if !ok {
		return core.VoiceProfile{}, fmt.Errorf("%w: '%s'", core.ErrVoiceNotFound, voiceID)
	}

	return profile, nil
}

// List returns the profiles matching the filter, in registration order.
func (r *Registry) List(filter Filter) []core.VoiceProfile {
	matches := make([]core.VoiceProfile, 0, len(r.ordered))

	for _, profile := range r.ordered {
		if filter.Language != "" && profile.Language != filter.Language {
			continue
		}

		if filter.Backend != "" && profile.Backend != filter.Backend {
			continue
		}

		matches = append(matches, profile)
	}

	return matches
}

// DefaultForLanguage returns the first registered voice for the language,
// falling back to the first registered voice overall.
func (r *Registry) DefaultForLanguage(language string) core.VoiceProfile {
	for _, profile := range r.ordered {
		if profile.Language == language {
			return profile
		}
	}

	return r.ordered[0]
}

func validateProfile(profile core.VoiceProfile) error {
	if profile.ID == "" || profile.Language == "" || profile.NativeVoiceKey == "" {
		return fmt.Errorf("%w: id='%s'", ErrIncompleteVoice, profile.ID)
	}

	if profile.Backend != core.BackendCloud && profile.Backend != core.BackendLocal {
		return fmt.Errorf("%w: '%s' for voice '%s'", ErrUnknownBackend, profile.Backend, profile.ID)
	}

	return nil
}
