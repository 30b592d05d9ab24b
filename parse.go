package mutator

import (
	"fmt"
	"regexp"
	"strings"
)

// Delimiters of the stage grammar.
const (
	PipeDelimiter  = "|"
	ArgsDelimiter  = ":"
	ArgSeparator   = ","
	ClassDelimiter = "@"
)

// targetPattern accepts "name" and "Class@name". Class identifiers may be
// namespaced with "\", "." or "/" separators.
var targetPattern = regexp.MustCompile(`^(?:(\w+(?:[\\./]\w+)*)@)?(\w+)$`)

// Stage is one parsed pipeline step.
type Stage struct {
	Raw    string
	Target string
	Class  string // empty unless Target has the Class@method shape
	Method string // method name for Class@method, otherwise equal to Target
	Args   Args
	Index  int
}

// IsClassTarget reports whether the stage references an external class.
func (s Stage) IsClassTarget() bool {
	return s.Class != ""
}

// Parse splits a single-string spec on "|" and parses every stage.
// It does not resolve targets.
func Parse(spec string) ([]Stage, error) {
	return ParseEach(strings.Split(spec, PipeDelimiter)...)
}

// ParseEach parses a sequence-of-strings spec. Each element is exactly one
// stage; "|" inside an element is not a delimiter.
func ParseEach(specs ...string) ([]Stage, error) {
	stages := make([]Stage, 0, len(specs))
	for i, raw := range specs {
		stage, err := parseStage(raw)
		if err != nil {
			return nil, &SpecError{
				Err:   err,
				Stage: raw,
				Index: i,
			}
		}
		stage.Index = i
		stages = append(stages, stage)
	}
	return stages, nil
}

func parseStage(raw string) (Stage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Stage{}, fmt.Errorf("%w: empty stage", ErrMalformedStage)
	}

	target, rawArgs, hasArgs := strings.Cut(text, ArgsDelimiter)
	m := targetPattern.FindStringSubmatch(target)
	if m == nil {
		return Stage{}, fmt.Errorf("%w: target %q does not match the identifier grammar", ErrMalformedStage, target)
	}

	stage := Stage{
		Raw:    raw,
		Target: target,
		Class:  m[1],
		Method: m[2],
	}
	if hasArgs {
		if rawArgs == "" {
			return Stage{}, fmt.Errorf("%w: empty argument list for %q", ErrMalformedStage, target)
		}
		stage.Args = strings.Split(rawArgs, ArgSeparator)
	}
	return stage, nil
}
