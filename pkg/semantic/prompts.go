package semantic

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/pelletier/go-toml/v2"
)

//go:embed prompts.toml
var defaultPrompts []byte

// Prompts holds the printf templates for both semantic modes.
type Prompts struct {
	Refinement string `toml:"refinement"`
	Direct     string `toml:"direct"`
}

// DefaultPrompts returns the embedded templates.
func DefaultPrompts() Prompts {
	var p Prompts
	if err := toml.Unmarshal(defaultPrompts, &p); err != nil {
		panic(fmt.Sprintf("embedded prompts.toml is invalid: %v", err))
	}
	return p
}

// LoadPrompts reads templates from a TOML file. Templates missing from the file keep
// their embedded defaults. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read prompts file '%s': %w", path, err)
	}

	var override Prompts
	if err := toml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if override.Refinement != "" {
		p.Refinement = override.Refinement
	}
	if override.Direct != "" {
		p.Direct = override.Direct
	}
	return p, nil
}

func (p Prompts) template(mode models.DetectionMode) string {
	if mode == models.DetectionModeLLMDirect {
		return p.Direct
	}
	return p.Refinement
}

// Render fills the mode's template with the pair list.
func (p Prompts) Render(mode models.DetectionMode, pairs []models.PairCandidate) (string, error) {
	payload, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(p.template(mode), string(payload)), nil
}
