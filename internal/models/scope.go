package models

import "strings"

// Scope is the namespace an alias lives in: either the root namespace or a
// named category (suborg). The zero value is the root scope.
type Scope struct {
	category string
}

// RootScope returns the global namespace.
func RootScope() Scope {
	return Scope{}
}

// CategoryScope returns the namespace of the named category. An empty name
// is the root scope.
func CategoryScope(name string) Scope {
	return Scope{category: name}
}

// IsRoot reports whether s is the root namespace.
func (s Scope) IsRoot() bool {
	return s.category == ""
}

// Category returns the category name, empty for the root scope.
func (s Scope) Category() string {
	return s.category
}

// Endpoint builds the storage key for alias inside s.
func (s Scope) Endpoint(alias string) string {
	if s.IsRoot() {
		return alias
	}
	return s.category + "/" + alias
}

func (s Scope) String() string {
	if s.IsRoot() {
		return "root"
	}
	return "category:" + s.category
}

// ParseEndpoint splits a storage key back into its scope and alias.
func ParseEndpoint(endpoint string) (Scope, string) {
	category, alias, ok := strings.Cut(endpoint, "/")
	if !ok {
		return RootScope(), endpoint
	}
	return CategoryScope(category), alias
}
