package pipeline

import (
	"slices"
	"sort"

	"github.com/specialistvlad/stepgrid/internal/step"
)

// splitOutputs maps a step's return value onto its declared output assets.
// It returns the per-asset values and the canonical value to cache, which
// splits back into the same outputs after a round trip through any codec:
//
//   - no outputs: the value is kept as is and nothing is published;
//   - one output: the whole value is the asset, unless the step returned
//     step.Outputs naming it;
//   - several outputs: the value must be a map holding exactly the
//     declared names.
func splitOutputs(s *step.Step, value any) (map[string]any, any, error) {
	declared := s.Outputs()

	switch len(declared) {
	case 0:
		return map[string]any{}, value, nil
	case 1:
		name := declared[0]
		if outs, ok := value.(step.Outputs); ok {
			v, present := outs[name]
			if !present || len(outs) != 1 {
				return nil, nil, mismatch(s, declared, outs)
			}
			return map[string]any{name: v}, v, nil
		}
		return map[string]any{name: value}, value, nil
	}

	var outs map[string]any
	switch v := value.(type) {
	case step.Outputs:
		outs = v
	case map[string]any:
		outs = v
	default:
		return nil, nil, &OutputError{Step: s.Name(), Reason: "a step with several outputs must return step.Outputs"}
	}
	if len(outs) != len(declared) {
		return nil, nil, mismatch(s, declared, outs)
	}
	result := make(map[string]any, len(declared))
	for _, name := range declared {
		v, ok := outs[name]
		if !ok {
			return nil, nil, mismatch(s, declared, outs)
		}
		result[name] = v
	}
	return result, map[string]any(result), nil
}

func mismatch(s *step.Step, declared []string, outs map[string]any) error {
	e := &OutputError{Step: s.Name()}
	for _, name := range declared {
		if _, ok := outs[name]; !ok {
			e.Missing = append(e.Missing, name)
		}
	}
	for name := range outs {
		if !slices.Contains(declared, name) {
			e.Unexpected = append(e.Unexpected, name)
		}
	}
	sort.Strings(e.Unexpected)
	return e
}
