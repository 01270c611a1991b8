package assess

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template ids shipped with the embedded defaults.
const (
	PromptEvaluateAnswer = "evaluate_answer"
	PromptFollowUp       = "follow_up"
	PromptFinalReport    = "final_report"
)

// ErrUnknownPrompt is returned by [PromptManager.Format] for an id that has
// no template.
var ErrUnknownPrompt = errors.New("assess: unknown prompt template")

//go:embed prompts.yaml
var defaultPrompts []byte

// Template is one prompt template.
type Template struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Content string `yaml:"content" json:"-"`
}

type promptFile struct {
	Templates []Template `yaml:"templates"`
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

type compiled struct {
	meta Template
	tmpl *template.Template
}

// PromptManager holds the prompt templates used by the assessors. The
// embedded defaults are always loaded; an optional YAML file overrides them
// by id and can be re-read with [PromptManager.Reload].
type PromptManager struct {
	mu   sync.RWMutex
	path string
	byID map[string]compiled
}

// NewPromptManager loads the defaults and, when path is non-empty, the
// overrides in path.
func NewPromptManager(path string) (*PromptManager, error) {
	pm := &PromptManager{path: path}
	if err := pm.Reload(); err != nil {
		return nil, err
	}
	return pm, nil
}

// Reload re-reads the override file. On error the previous templates stay
// in effect.
func (pm *PromptManager) Reload() error {
	pm.mu.RLock()
	path := pm.path
	pm.mu.RUnlock()
	return pm.load(path)
}

// SetPath switches to a different override file and loads it.
func (pm *PromptManager) SetPath(path string) error {
	if err := pm.load(path); err != nil {
		return err
	}
	pm.mu.Lock()
	pm.path = path
	pm.mu.Unlock()
	return nil
}

func (pm *PromptManager) load(path string) error {
	var defaults promptFile
	if err := yaml.Unmarshal(defaultPrompts, &defaults); err != nil {
		return fmt.Errorf("assess: parse default prompts: %w", err)
	}
	all := defaults.Templates

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("assess: read prompts %q: %w", path, err)
		}
		var overrides promptFile
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&overrides); err != nil {
			return fmt.Errorf("assess: parse prompts %q: %w", path, err)
		}
		all = append(all, overrides.Templates...)
	}

	byID := make(map[string]compiled, len(all))
	var errs []error
	for _, t := range all {
		if t.ID == "" {
			errs = append(errs, errors.New("template without id"))
			continue
		}
		tmpl, err := template.New(t.ID).Funcs(templateFuncs).Option("missingkey=error").Parse(t.Content)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %q: %w", t.ID, err))
			continue
		}
		byID[t.ID] = compiled{meta: t, tmpl: tmpl}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("assess: load prompts: %w", err)
	}

	pm.mu.Lock()
	pm.byID = byID
	pm.mu.Unlock()
	slog.Info("prompt templates loaded", "count", len(byID), "overrides", path)
	return nil
}

// Format renders template id with vars. Missing map keys are errors.
func (pm *PromptManager) Format(id string, vars map[string]any) (string, error) {
	pm.mu.RLock()
	c, ok := pm.byID[id]
	pm.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, id)
	}
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("assess: format %q: %w", id, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Get returns the template registered under id.
func (pm *PromptManager) Get(id string) (Template, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	c, ok := pm.byID[id]
	return c.meta, ok
}

// List returns every template sorted by id.
func (pm *PromptManager) List() []Template {
	pm.mu.RLock()
	out := make([]Template, 0, len(pm.byID))
	for _, c := range pm.byID {
		out = append(out, c.meta)
	}
	pm.mu.RUnlock()
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(a.ID, b.ID) })
	return out
}
