// Package voices_test tests the voice profile registry.
package voices_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbr/tts-gateway/internal/core"
	"github.com/voxbr/tts-gateway/internal/voices"
)

func seedProfiles() []core.VoiceProfile {
	return []core.VoiceProfile{
		{
			ID:             "pt-cloud-female",
			DisplayName:    "Português (nuvem)",
			Language:       "pt",
			Backend:        core.BackendCloud,
			NativeVoiceKey: "pt-br-female-1",
		},
		{
			ID:             "pt-local-default",
			DisplayName:    "Português (local)",
			Language:       "pt",
			Backend:        core.BackendLocal,
			NativeVoiceKey: "pt-br",
		},
		{
			ID:             "en-cloud-female",
			DisplayName:    "English (cloud)",
			Language:       "en",
			Backend:        core.BackendCloud,
			NativeVoiceKey: "en-us-female-1",
		},
	}
}

func TestResolveKnownVoice(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	profile, err := registry.Resolve("pt-cloud-female")
	require.NoError(t, err)
	assert.Equal(t, core.BackendCloud, profile.Backend)
	assert.Equal(t, "pt-br-female-1", profile.NativeVoiceKey)
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	first, err := registry.Resolve("pt-local-default")
	require.NoError(t, err)

	second, err := registry.Resolve("pt-local-default")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveUnknownVoice(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	_, err = registry.Resolve("does-not-exist")
	require.ErrorIs(t, err, core.ErrVoiceNotFound)
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	all := registry.List(voices.Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "pt-cloud-female", all[0].ID)
	assert.Equal(t, "pt-local-default", all[1].ID)
	assert.Equal(t, "en-cloud-female", all[2].ID)
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	pt := registry.List(voices.Filter{Language: "pt"})
	require.Len(t, pt, 2)

	local := registry.List(voices.Filter{Backend: core.BackendLocal})
	require.Len(t, local, 1)
	assert.Equal(t, "pt-local-default", local[0].ID)

	both := registry.List(voices.Filter{Language: "en", Backend: core.BackendLocal})
	assert.Empty(t, both)
}

func TestDefaultForLanguage(t *testing.T) {
	t.Parallel()

	registry, err := voices.New(seedProfiles())
	require.NoError(t, err)

	assert.Equal(t, "en-cloud-female", registry.DefaultForLanguage("en").ID)
	// Unknown language falls back to the first registered voice.
	assert.Equal(t, "pt-cloud-female", registry.DefaultForLanguage("ja").ID)
}

func TestNewRejectsDuplicates(t *testing.T) {
	t.Parallel()

	profiles := seedProfiles()
	profiles = append(profiles, profiles[0])

	_, err := voices.New(profiles)
	require.ErrorIs(t, err, voices.ErrDuplicateVoice)
}

func TestNewRejectsEmptySeed(t *testing.T) {
	t.Parallel()

	_, err := voices.New(nil)
	require.ErrorIs(t, err, voices.ErrNoVoices)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	profiles := []core.VoiceProfile{{
		ID:             "bad",
		Language:       "pt",
		Backend:        core.Backend("neural"),
		NativeVoiceKey: "x",
	}}

	_, err := voices.New(profiles)
	require.ErrorIs(t, err, voices.ErrUnknownBackend)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	seed := `
[[voices]]
id = "pt-cloud-female"
display_name = "Português (nuvem)"
language = "pt"
backend = "cloud"
native_voice_key = "pt-br-female-1"

[[voices]]
id = "pt-local-default"
display_name = "Português (local)"
language = "pt"
backend = "local"
native_voice_key = "pt-br"
`

	path := filepath.Join(t.TempDir(), "voices.toml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	registry, err := voices.LoadFile(path)
	require.NoError(t, err)

	profile, err := registry.Resolve("pt-cloud-female")
	require.NoError(t, err)
	assert.Equal(t, "Português (nuvem)", profile.DisplayName)
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := voices.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
