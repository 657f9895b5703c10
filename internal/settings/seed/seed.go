// Package seed holds the default email templates and animations.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type EmailTemplate struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Subject  string `yaml:"subject"`
	HTMLBody string `yaml:"html_body"`
}

type Animation struct {
	Key       string         `yaml:"key"`
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	SortOrder int            `yaml:"sort_order"`
	Config    map[string]any `yaml:"config"`
}

type Defaults struct {
	EmailTemplates []EmailTemplate `yaml:"email_templates"`
	Animations     []Animation     `yaml:"animations"`
}

// Load parses the embedded defaults.
func Load() (Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		return Defaults{}, fmt.Errorf("parse settings defaults: %w", err)
	}
	return d, nil
}

// Template returns the default for key.
func (d Defaults) Template(key string) (EmailTemplate, bool) {
	for _, t := range d.EmailTemplates {
		if t.Key == key {
			return t, true
		}
	}
	return EmailTemplate{}, false
}
