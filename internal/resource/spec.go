package resource

import "strings"

// Spec is a parsed resource specification. Specs are parsed once and
// walked at expansion time; no string re-splitting happens during
// scheduling.
//
// Grammar, by example:
//
//	"*"              all resources in config order
//	"john|mary"      alternatives, order preserved
//	"team_a"         group alias, member order preserved
//	"!john"          all resources except john
//	"team_a|!john"   team_a members except john
type Spec interface {
	// Expand produces the ordered, de-duplicated candidate list.
	Expand(cfg *Config) ([]string, error)
}

// All matches every resource in config order.
type All struct{}

// Named matches a single resource by name.
type Named struct {
	Name string
}

// Group matches the members of a named group.
type Group struct {
	Name string
}

// Alt concatenates the expansions of its alternatives in order.
type Alt struct {
	Specs []Spec
}

// Exclude filters names out of an inner spec's expansion.
type Exclude struct {
	Inner Spec
	Names []string
}

func (All) Expand(cfg *Config) ([]string, error) {
	return cfg.ResourceOrder(), nil
}

func (n Named) Expand(cfg *Config) ([]string, error) {
	if !cfg.HasResource(n.Name) {
		return nil, &UnknownResourceError{Name: n.Name}
	}
	return []string{n.Name}, nil
}

func (g Group) Expand(cfg *Config) ([]string, error) {
	members, ok := cfg.Groups[g.Name]
	if !ok {
		return nil, &UnknownGroupError{Name: g.Name}
	}
	result := make([]string, 0, len(members))
	for _, m := range members {
		inner, err := ParseSpec(m, cfg)
		if err != nil {
			return nil, err
		}
		expanded, err := inner.Expand(cfg)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
	}
	return dedupe(result), nil
}

func (a Alt) Expand(cfg *Config) ([]string, error) {
	var result []string
	for _, s := range a.Specs {
		expanded, err := s.Expand(cfg)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
	}
	return dedupe(result), nil
}

func (e Exclude) Expand(cfg *Config) ([]string, error) {
	expanded, err := e.Inner.Expand(cfg)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(e.Names))
	for _, n := range e.Names {
		excluded[n] = true
	}
	result := expanded[:0:0]
	for _, r := range expanded {
		if !excluded[r] {
			result = append(result, r)
		}
	}
	return result, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := names[:0:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}
	return result
}

// ParseSpec parses a textual resource spec against a config. Group names
// are resolved at parse time; anything else becomes a Named node, so
// unknown names surface as UnknownResourceError at expansion.
func ParseSpec(spec string, cfg *Config) (Spec, error) {
	parts := strings.Split(spec, "|")

	var inclusions []Spec
	var exclusions []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "!"):
			exclusions = append(exclusions, part[1:])
		case part == "*":
			inclusions = append(inclusions, All{})
		default:
			if _, ok := cfg.Groups[part]; ok {
				inclusions = append(inclusions, Group{Name: part})
			} else {
				inclusions = append(inclusions, Named{Name: part})
			}
		}
	}

	var inner Spec
	switch len(inclusions) {
	case 0:
		// Exclusion-only specs start from the full resource set.
		inner = All{}
	case 1:
		inner = inclusions[0]
	default:
		inner = Alt{Specs: inclusions}
	}

	if len(exclusions) > 0 {
		return Exclude{Inner: inner, Names: exclusions}, nil
	}
	return inner, nil
}

// ExpandSpec parses and expands in one step.
func ExpandSpec(spec string, cfg *Config) ([]string, error) {
	parsed, err := ParseSpec(spec, cfg)
	if err != nil {
		return nil, err
	}
	return parsed.Expand(cfg)
}
