package command

import (
	"math"
	"strconv"
	"strings"
)

// match runs steps against text. The returned slice holds one value per
// step: the capture of a matched named step, nil otherwise.
func match(text string, steps []Step) ([]any, bool) {
	return matchFrom(text, 0, steps, 0)
}

func matchFrom(text string, index int, steps []Step, i int) ([]any, bool) {
	start := index
	if i == len(steps) || !keepsSpaces(steps[i]) {
		index = skipSpaces(text, index)
	}

	if i == len(steps) {
		if index < len(text) {
			return nil, false
		}
		return make([]any, 0, len(steps)), true
	}

	step := steps[i]
	switch step.Kind {
	case StepPrefix:
		if strings.HasPrefix(text[index:], step.Literal) {
			if rest, ok := matchFrom(text, index+len(step.Literal), steps, i+1); ok {
				return prepend(nil, rest), true
			}
		}

	case StepNumber:
		token := text[index:nextSpace(text, index)]
		if value, ok := parseNumber(token); ok {
			if rest, ok := matchFrom(text, index+len(token), steps, i+1); ok {
				return prepend(value, rest), true
			}
		}

	case StepText:
		end := len(text)
		if i < len(steps)-1 {
			end = nextSpace(text, index)
		}
		for {
			if end > index {
				if rest, ok := matchFrom(text, end, steps, i+1); ok {
					return prepend(strings.TrimRight(text[index:end], " "), rest), true
				}
			}
			if end >= len(text) {
				break
			}
			end = nextSpace(text, end+1)
		}

	case StepDate:
	}

	if !step.Optional {
		return nil, false
	}

	rest, ok := matchFrom(text, start, steps, i+1)
	if !ok {
		return nil, false
	}
	return prepend(nil, rest), true
}

func keepsSpaces(step Step) bool {
	return step.Kind == StepPrefix && strings.HasPrefix(step.Literal, " ")
}

func skipSpaces(text string, index int) int {
	for index < len(text) && text[index] == ' ' {
		index++
	}
	return index
}

// nextSpace returns the index of the first space at or after from, or len(text).
func nextSpace(text string, from int) int {
	if from >= len(text) {
		return len(text)
	}
	if n := strings.IndexByte(text[from:], ' '); n >= 0 {
		return from + n
	}
	return len(text)
}

func parseNumber(token string) (float64, bool) {
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func prepend(value any, rest []any) []any {
	out := make([]any, 0, len(rest)+1)
	out = append(out, value)
	return append(out, rest...)
}
