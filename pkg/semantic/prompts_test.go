package semantic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrompts(t *testing.T) {
	p := DefaultPrompts()
	assert.Contains(t, p.Refinement, "%s")
	assert.Contains(t, p.Direct, "%s")
	assert.NotEqual(t, p.Refinement, p.Direct)
}

func TestPrompts_Render(t *testing.T) {
	pairs := []models.PairCandidate{{Index: 0, PrimaryID: 1, DuplicateID: 2, PrimaryName: "Walmart", DuplicateName: "WALMART #4521"}}

	refinement, err := DefaultPrompts().Render(models.DetectionModeLLM, pairs)
	require.NoError(t, err)
	assert.Contains(t, refinement, "WALMART #4521")
	assert.Contains(t, refinement, "fuzzy matcher")
	assert.NotContains(t, refinement, "%!")

	direct, err := DefaultPrompts().Render(models.DetectionModeLLMDirect, pairs)
	require.NoError(t, err)
	assert.Contains(t, direct, `"primary_name": "Walmart"`)
	assert.NotContains(t, direct, "fuzzy matcher")
}

func TestLoadPrompts(t *testing.T) {
	t.Run("should return defaults for an empty path", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPrompts(), p)
	})

	t.Run("should override only the templates present in the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.toml")
		require.NoError(t, os.WriteFile(path, []byte("direct = \"Same payee? %s\"\n"), 0o600))

		p, err := LoadPrompts(path)
		require.NoError(t, err)
		assert.Equal(t, "Same payee? %s", p.Direct)
		assert.Equal(t, DefaultPrompts().Refinement, p.Refinement)
	})

	t.Run("should fail for a missing file", func(t *testing.T) {
		_, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})

	t.Run("should fail for invalid TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.toml")
		require.NoError(t, os.WriteFile(path, []byte("direct = ["), 0o600))

		_, err := LoadPrompts(path)
		assert.Error(t, err)
	})
}
