package pipeline

// StageSpec describes one step of a pipeline definition. Stages run strictly
// in order; each one turns a prompt into a single output field.
type StageSpec struct {
	// Name identifies the stage in checkpoints, errors and logs.
	Name string

	// OutputField is the declared state field this stage fills.
	OutputField string

	// Requires lists output fields of earlier stages that must be
	// non-empty before this stage may run.
	Requires []string

	// NeedsContext pulls the relevant conversation transcript before
	// building the prompt. Stages that only transform earlier outputs
	// leave this false.
	NeedsContext bool

	// Prompt renders the generation prompt from the current state and the
	// retrieved context (empty string when NeedsContext is false).
	Prompt func(state *RunState, contextText string) string

	// Narrate produces the progress note appended after the stage
	// completes. Nil means no narration.
	Narrate func(output string) string
}

func (s StageSpec) missingInputs(state *RunState) []string {
	var missing []string
	for _, field := range s.Requires {
		if v, ok := state.Get(field); !ok || v == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
