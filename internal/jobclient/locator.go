package jobclient

import "strings"

// Locator resolves where the job service lives. An empty configured origin
// means same-origin, in which case every generated path is relative.
type Locator struct {
	base string
}

// NewLocator builds a Locator from a possibly empty origin. Whitespace-only
// values count as empty; trailing slashes are stripped.
func NewLocator(origin string) Locator {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return Locator{}
	}
	return Locator{base: strings.TrimRight(origin, "/")}
}

// Base returns the prefix for REST calls, or "" for same-origin.
func (l Locator) Base() string {
	return l.base
}

// SameOrigin reports whether no external origin is configured.
func (l Locator) SameOrigin() bool {
	return l.base == ""
}

// Path prefixes p with the base. For same-origin locators p is returned
// unchanged as a relative path.
func (l Locator) Path(p string) string {
	return l.base + p
}
