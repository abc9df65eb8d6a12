package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	logs "github.com/danmuck/kiroshi/internal/logging"
)

var ErrInvalidSettings = errors.New("catalog: invalid model settings")

// PromptPlaceholder marks where the user prompt goes inside a template.
const PromptPlaceholder = "{prompt}"

// Metadata holds per-model prompt templates.
type Metadata struct {
	PromptTemplate         string `toml:"prompt_template" json:"prompt_template"`
	NegativePromptTemplate string `toml:"negative_prompt_template" json:"negative_prompt_template"`
}

// Apply composes prompt and negative with the templates.
func (m Metadata) Apply(prompt, negative string) (string, string) {
	return compose(m.PromptTemplate, prompt), compose(m.NegativePromptTemplate, negative)
}

func compose(template, text string) string {
	template = strings.TrimSpace(template)
	text = strings.TrimSpace(text)
	switch {
	case template == "":
		return text
	case strings.Contains(template, PromptPlaceholder):
		return strings.ReplaceAll(template, PromptPlaceholder, text)
	case text == "":
		return template
	default:
		return template + ", " + text
	}
}

// Settings is the models.toml provider. Lookups are safe during Reload.
type Settings struct {
	path string

	mu     sync.RWMutex
	models map[string]Metadata
}

// LoadSettings reads path. A missing file is an empty settings table.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{path: path, models: map[string]Metadata{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Reload() error {
	models := map[string]Metadata{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logs.Debugf("catalog.settings path=%s missing", s.path)
	case err != nil:
		return fmt.Errorf("catalog: read %s: %w", s.path, err)
	default:
		if _, err := toml.Decode(string(data), &models); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, s.path, err)
		}
	}
	s.mu.Lock()
	s.models = models
	s.mu.Unlock()
	logs.Debugf("catalog.settings path=%s models=%d", s.path, len(models))
	return nil
}

// Get returns the metadata for model, or empty metadata when unknown.
func (s *Settings) Get(model string) Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models[model]
}

// Names lists the configured model names.
func (s *Settings) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
