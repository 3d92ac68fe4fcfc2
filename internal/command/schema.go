// Package command matches free-text commands against ordered schemas and
// dispatches the captured values to named controllers.
package command

// StepKind identifies how a schema step consumes input.
type StepKind int

const (
	StepPrefix StepKind = iota
	StepNumber
	StepText
	StepDate
)

func (k StepKind) String() string {
	switch k {
	case StepPrefix:
		return "prefix"
	case StepNumber:
		return "number"
	case StepText:
		return "text"
	case StepDate:
		return "date"
	default:
		return "unknown"
	}
}

// Step is one matching rule. Literal is set for prefix steps, Name for
// capturing steps.
type Step struct {
	Kind     StepKind
	Literal  string
	Name     string
	Optional bool
}

// StepOption configures a step.
type StepOption func(*Step)

// Optional lets the schema match when the step does not.
func Optional() StepOption {
	return func(s *Step) { s.Optional = true }
}

// Schema is an ordered list of steps. Registering a schema with a Parser
// copies its steps, so later builder calls do not affect registered schemas.
type Schema struct {
	steps []Step
}

func NewSchema() *Schema {
	return &Schema{}
}

// Prefix matches literal exactly. Spaces before it are skipped unless the
// literal itself starts with a space.
func (s *Schema) Prefix(literal string, opts ...StepOption) *Schema {
	return s.add(Step{Kind: StepPrefix, Literal: literal}, opts)
}

// Number captures a space-delimited numeric token as float64.
func (s *Schema) Number(name string, opts ...StepOption) *Schema {
	return s.add(Step{Kind: StepNumber, Name: name}, opts)
}

// Text captures the shortest run of words that lets the rest of the schema
// match. As the last step it captures the remaining input.
func (s *Schema) Text(name string, opts ...StepOption) *Schema {
	return s.add(Step{Kind: StepText, Name: name}, opts)
}

// Date declares a date capture. Dates are not matched yet: a required date
// step never matches and an optional one is always skipped.
func (s *Schema) Date(name string, opts ...StepOption) *Schema {
	return s.add(Step{Kind: StepDate, Name: name}, opts)
}

// Steps returns a copy of the schema steps.
func (s *Schema) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

func (s *Schema) add(step Step, opts []StepOption) *Schema {
	for _, opt := range opts {
		opt(&step)
	}
	s.steps = append(s.steps, step)
	return s
}
