package script

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed research.yaml
var researchWorkflow []byte

// Step is one stage of a workflow.
type Step struct {
	ID       string   `mapstructure:"id" yaml:"id"`
	Progress []string `mapstructure:"progress" yaml:"progress"`
	// Output is rendered into the run values under the step ID.
	Output string `mapstructure:"output" yaml:"output"`
	// Gate is rendered into the pause prompt. Empty means the step never pauses.
	Gate string `mapstructure:"gate" yaml:"gate"`

	outputTmpl *template.Template
	gateTmpl   *template.Template
}

// Workflow is an ordered list of steps plus the report template.
type Workflow struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Steps  []Step `mapstructure:"steps" yaml:"steps"`
	Report string `mapstructure:"report" yaml:"report"`

	reportTmpl *template.Template
}

// View is the data every template renders against.
type View struct {
	Topic    string
	Step     string
	Revision int
	Feedback []string
	Values   map[string]any
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// LoadWorkflow reads a workflow definition from a YAML (or JSON) file.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	wf, err := ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// ParseWorkflow decodes and validates a workflow definition. Unknown keys are
// rejected.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	var wf Workflow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &wf,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := wf.compile(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// NewWorkflow validates steps and compiles their templates.
func NewWorkflow(name string, steps []Step, report string) (*Workflow, error) {
	wf := &Workflow{Name: name, Steps: steps, Report: report}
	if err := wf.compile(); err != nil {
		return nil, err
	}
	return wf, nil
}

// DefaultWorkflow returns the built-in research workflow: a report plan behind a
// feedback gate, followed by section writing and report compilation.
func DefaultWorkflow() *Workflow {
	wf, err := ParseWorkflow(researchWorkflow)
	if err != nil {
		panic(fmt.Sprintf("script: built-in workflow: %v", err))
	}
	return wf
}

func (w *Workflow) compile() error {
	seen := make(map[string]bool, len(w.Steps))
	for i := range w.Steps {
		step := &w.Steps[i]
		if step.ID == "" {
			return fmt.Errorf("step %d has no id", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		seen[step.ID] = true

		var err error
		if step.outputTmpl, err = parse(step.ID+".output", step.Output); err != nil {
			return err
		}
		if step.gateTmpl, err = parse(step.ID+".gate", step.Gate); err != nil {
			return err
		}
	}

	report := w.Report
	if strings.TrimSpace(report) == "" {
		report = "# {{.Topic}}\n"
	}
	var err error
	w.reportTmpl, err = parse("report", report)
	return err
}

// Gates returns the IDs of the steps that pause for feedback.
func (w *Workflow) Gates() []string {
	var ids []string
	for _, s := range w.Steps {
		if s.gateTmpl != nil {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func parse(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, v View) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, v); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
