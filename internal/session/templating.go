package session

import (
	"bytes"
	"math/rand"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// TemplateEngine renders step URLs and bodies. Parsed templates are cached
// because every attempt renders the same journey.
type TemplateEngine struct {
	cache   map[string]*template.Template
	mu      sync.RWMutex
	funcMap template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	Index int
	RunID string
	UUID  string
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		cache: make(map[string]*template.Template),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    randomInt,
		"randomChoice": randomChoice,
		"uuid":         randomUUID,
	}

	return e
}

// Preprocess converts simple variables like {{index}} to Go template syntax {{.Index}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{index}}", "{{.Index}}")
	s = strings.ReplaceAll(s, "{{runID}}", "{{.RunID}}")
	s = strings.ReplaceAll(s, "{{sessionID}}", "{{.UUID}}")
	return s
}

func (e *TemplateEngine) parse(text string) (*template.Template, error) {
	e.mu.RLock()
	t, ok := e.cache[text]
	e.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("step").Funcs(e.funcMap).Option("missingkey=error").Parse(e.Preprocess(text))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[text] = t
	e.mu.Unlock()
	return t, nil
}

// Render executes text as a template with data. Text without template
// actions is returned unchanged.
func (e *TemplateEngine) Render(text string, data TemplateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := e.parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func randomUUID() string {
	return uuid.New().String()
}

func randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}
