package pipeline

import (
	"fmt"
	"strings"
)

// Kind names a registered pipeline definition.
type Kind string

const (
	KindMedium   Kind = "medium"
	KindLinkedIn Kind = "linkedin"
)

// Definition is an ordered list of stages plus the retrieval settings shared
// by every run of this kind.
type Definition struct {
	Kind     Kind
	Platform string
	// ContextK caps how many retrieved messages feed context-aware stages.
	ContextK int
	Stages   []StageSpec
}

func (d *Definition) Validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline: definition %q has no stages", d.Kind)
	}
	names := make(map[string]bool, len(d.Stages))
	outputs := make(map[string]bool, len(d.Stages))
	for i, stage := range d.Stages {
		if stage.Name == "" || stage.OutputField == "" {
			return fmt.Errorf("pipeline: definition %q stage %d is missing a name or output field", d.Kind, i)
		}
		if stage.Prompt == nil {
			return fmt.Errorf("pipeline: definition %q stage %q has no prompt", d.Kind, stage.Name)
		}
		if names[stage.Name] {
			return fmt.Errorf("pipeline: definition %q has duplicate stage %q", d.Kind, stage.Name)
		}
		if outputs[stage.OutputField] {
			return fmt.Errorf("pipeline: definition %q has duplicate output field %q", d.Kind, stage.OutputField)
		}
		for _, req := range stage.Requires {
			if !outputs[req] {
				return fmt.Errorf("pipeline: definition %q stage %q requires %q before any stage produces it", d.Kind, stage.Name, req)
			}
		}
		names[stage.Name] = true
		outputs[stage.OutputField] = true
	}
	return nil
}

// LastIndex is the index of the final stage.
func (d *Definition) LastIndex() int {
	return len(d.Stages) - 1
}

// FinalField is the output field of the final stage.
func (d *Definition) FinalField() string {
	return d.Stages[len(d.Stages)-1].OutputField
}

// DefinitionFor returns the registered definition for kind.
func DefinitionFor(kind Kind) (*Definition, error) {
	switch kind {
	case KindMedium:
		return MediumDefinition(), nil
	case KindLinkedIn:
		return LinkedInDefinition(), nil
	default:
		return nil, fmt.Errorf("pipeline: unknown kind %q", kind)
	}
}

// DefinitionForPlatform maps a user-facing platform name to its definition.
func DefinitionForPlatform(platform string) (*Definition, error) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "medium":
		return MediumDefinition(), nil
	case "linkedin":
		return LinkedInDefinition(), nil
	default:
		return nil, fmt.Errorf("pipeline: unsupported platform %q", platform)
	}
}
