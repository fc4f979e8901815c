package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Policy is a versioned answer template. Changing the template text must come
// with a new version.
type Policy struct {
	Version    string `yaml:"version"`
	Disclaimer string `yaml:"disclaimer"`
	Template   string `yaml:"template"`

	tmpl *template.Template
}

type fields struct {
	Category   string
	Context    string
	Question   string
	Disclaimer string
}

// Default returns the policy compiled into the binary.
func Default() (*Policy, error) {
	return Parse(policyYAML)
}

// MustDefault panics if the embedded policy is malformed.
func MustDefault() *Policy {
	p, err := Default()
	if err != nil {
		panic(err)
	}
	return p
}

func Parse(raw []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prompt policy failed: %w", err)
	}
	if strings.TrimSpace(p.Version) == "" {
		return nil, fmt.Errorf("prompt policy has no version")
	}
	if strings.TrimSpace(p.Template) == "" {
		return nil, fmt.Errorf("prompt policy %s has no template", p.Version)
	}
	tmpl, err := template.New(p.Version).Option("missingkey=error").Parse(p.Template)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s failed: %w", p.Version, err)
	}
	p.tmpl = tmpl
	return &p, nil
}

// Assemble renders the prompt for one question.
func (p *Policy) Assemble(category, contextText, question string) (string, error) {
	var b strings.Builder
	err := p.tmpl.Execute(&b, fields{
		Category:   category,
		Context:    contextText,
		Question:   question,
		Disclaimer: p.Disclaimer,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt %s failed: %w", p.Version, err)
	}
	return b.String(), nil
}

// FormatContext joins chunk texts in rank order with a blank line between them.
func FormatContext(texts []string) string {
	return strings.Join(texts, "\n\n")
}
