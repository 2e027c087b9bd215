package resource

import (
	"fmt"
	"strings"
)

// Unassigned is the shared pseudo-resource for tasks whose spec matches no
// live resource. All such tasks serialize on it.
const Unassigned = "unassigned"

// UnknownResourceError reports a spec or group referencing an undefined
// resource.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Name)
}

// UnknownGroupError reports a reference to an undefined group.
type UnknownGroupError struct {
	Name string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("unknown resource group %q", e.Name)
}

// Definition describes a single resource.
type Definition struct {
	Name       string   `yaml:"name"`
	DNSPeriods []Period `yaml:"dns_periods,omitempty"`
}

// Config is the complete resource configuration. Resource order is
// significant: it defines preference for wildcard expansion.
type Config struct {
	Resources       []Definition        `yaml:"resources"`
	Groups          map[string][]string `yaml:"groups,omitempty"`
	DefaultResource string              `yaml:"default_resource,omitempty"`
}

// Validate checks that group members reference defined resources.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		names[r.Name] = true
	}
	for group, members := range c.Groups {
		for _, member := range members {
			if member == "*" {
				continue
			}
			name := member
			if len(member) > 0 && member[0] == '!' {
				name = member[1:]
			}
			if !names[name] {
				return fmt.Errorf("group %q: %w", group, &UnknownResourceError{Name: name})
			}
		}
	}
	return nil
}

// ResourceOrder returns the ordered resource names.
func (c *Config) ResourceOrder() []string {
	order := make([]string, len(c.Resources))
	for i, r := range c.Resources {
		order[i] = r.Name
	}
	return order
}

// HasResource reports whether name is a defined resource.
func (c *Config) HasResource(name string) bool {
	for _, r := range c.Resources {
		if r.Name == name {
			return true
		}
	}
	return false
}

// DNSPeriods returns the merged DNS periods for a resource: global periods
// first, then the resource's own.
func (c *Config) DNSPeriods(name string, global []Period) []Period {
	periods := make([]Period, 0, len(global))
	periods = append(periods, global...)
	for _, r := range c.Resources {
		if r.Name == name {
			periods = append(periods, r.DNSPeriods...)
			break
		}
	}
	return periods
}

// ExpandGroup expands a group alias to its member list, handling
// exclusions and preserving declaration order.
func (c *Config) ExpandGroup(name string) ([]string, error) {
	members, ok := c.Groups[name]
	if !ok {
		return nil, &UnknownGroupError{Name: name}
	}
	spec, err := ParseSpec(strings.Join(members, "|"), c)
	if err != nil {
		return nil, err
	}
	return spec.Expand(c)
}
