// Package prompt manages the embedded prompt corpus. Every template the
// pipeline uses is baked into the binary with go:embed, parsed once,
// and cached for the life of the process.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates
var templateFS embed.FS

// Template is a parsed prompt template. Instances are cached; loading
// the same name twice returns the same pointer.
type Template struct {
	Name string
	Text string
	tmpl *template.Template
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Template)

	templateFuncs = template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
)

// Load returns the parsed template for name (a path relative to
// templates/, without the .tmpl extension). The result is memoized.
func Load(name string) (*Template, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if t, ok := cache[name]; ok {
		return t, nil
	}

	data, err := templateFS.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("unknown prompt template %q: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %q: %w", name, err)
	}

	t := &Template{Name: name, Text: string(data), tmpl: tmpl}
	cache[name] = t
	return t, nil
}

// MustLoad loads a template and panics on error. Templates are
// compile-time assets; a missing one is a build defect.
func MustLoad(name string) *Template {
	t, err := Load(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes the template with the given data.
func (t *Template) Render(data interface{}) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", t.Name, err)
	}
	return sb.String(), nil
}

// Render loads and renders a template in one call.
func Render(name string, data interface{}) (string, error) {
	t, err := Load(name)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}

// SchemaExample is a canned query with a precomputed answer intent,
// used for embedding-based shortcut matching.
type SchemaExample struct {
	Query  string `yaml:"query"`
	Target string `yaml:"target"`
}

var (
	examplesOnce sync.Once
	examples     []SchemaExample
	examplesErr  error
)

// LoadSchemaExamples returns the canned schema-question examples from
// the embedded corpus. Parsed once per process.
func LoadSchemaExamples() ([]SchemaExample, error) {
	examplesOnce.Do(func() {
		data, err := templateFS.ReadFile("templates/schema_examples.yaml")
		if err != nil {
			examplesErr = fmt.Errorf("failed to read schema examples: %w", err)
			return
		}
		if err := yaml.Unmarshal(data, &examples); err != nil {
			examplesErr = fmt.Errorf("failed to parse schema examples: %w", err)
		}
	})
	return examples, examplesErr
}

// HelpMessage returns the fixed capability message shown for greeting
// and help queries.
func HelpMessage() string {
	data, err := templateFS.ReadFile("templates/help_message.md")
	if err != nil {
		return "I'm VoxelGPT, an assistant for querying computer-vision datasets."
	}
	return strings.TrimSpace(string(data))
}
