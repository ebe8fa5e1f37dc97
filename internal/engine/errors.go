package engine

import "fmt"

// MissingDependencyError reports that an external tool or model artifact an
// engine needs is not available.
type MissingDependencyError struct {
	Dependency string
	Reason     string
}

func (e *MissingDependencyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing dependency %s", e.Dependency)
	}
	return fmt.Sprintf("missing dependency %s: %s", e.Dependency, e.Reason)
}
