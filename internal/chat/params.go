package chat

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
)

// Params is an open string-keyed mapping of conversation values.
type Params map[string]any

// Merge returns a new mapping with others applied on top of p, left to right.
// Neither p nor the arguments are modified.
func (p Params) Merge(others ...Params) Params {
	maps := make([]map[string]any, 0, len(others)+1)
	maps = append(maps, p)
	for _, o := range others {
		maps = append(maps, o)
	}
	return Params(lo.Assign(maps...))
}

// Without returns a copy of p with the given keys removed.
func (p Params) Without(keys ...string) Params {
	return Params(lo.OmitByKeys(map[string]any(p), keys))
}

// String returns the value under key if it is a string.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Decode copies p into out, converting loosely typed values (e.g. numbers
// restored from JSON as float64) to the field types of out.
func (p Params) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build params decoder: %w", err)
	}

	if err := decoder.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}

	return nil
}
