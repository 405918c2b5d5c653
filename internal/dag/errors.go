package dag

import "fmt"

// UnknownDependencyError reports a stage whose depends list names a stage
// that does not exist in the pipeline.
type UnknownDependencyError struct {
	Stage      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("stage %q depends on unknown stage %q", e.Stage, e.Dependency)
}

// CyclicDependencyError reports a dependency cycle, naming at least one
// stage on the cycle.
type CyclicDependencyError struct {
	Stage string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving stage %q", e.Stage)
}
