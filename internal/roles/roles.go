package roles

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role is a declarative worker record loaded from configuration.
type Role struct {
	Name      string   `yaml:"name"`
	Purpose   string   `yaml:"purpose"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
	Verbose   bool     `yaml:"verbose"`
}

var (
	errRoleNameMissing = errors.New("role name is required")
	errRoleDuplicate   = errors.New("role defined more than once")
)

// Catalog is the immutable set of roles for one process.
type Catalog struct {
	roles map[string]Role
}

// NewCatalog validates the role records and indexes them by name.
func NewCatalog(records []Role) (Catalog, error) {
	indexed := make(map[string]Role, len(records))
	for index, record := range records {
		name := strings.TrimSpace(record.Name)
		if name == "" {
			return Catalog{}, fmt.Errorf("role %d: %w", index, errRoleNameMissing)
		}
		if _, exists := indexed[name]; exists {
			return Catalog{}, fmt.Errorf("role %q: %w", name, errRoleDuplicate)
		}
		record.Name = name
		record.Tools = append([]string(nil), record.Tools...)
		indexed[name] = record
	}
	return Catalog{roles: indexed}, nil
}

func (c Catalog) Lookup(name string) (Role, bool) {
	role, ok := c.roles[name]
	if !ok {
		return Role{}, false
	}
	role.Tools = append([]string(nil), role.Tools...)
	return role, true
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTool reports whether the role declares the tool.
func (r Role) HasTool(toolName string) bool {
	for _, declared := range r.Tools {
		if declared == toolName {
			return true
		}
	}
	return false
}
