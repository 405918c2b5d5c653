package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
type Loader interface {
	// Load reads the definition at path, translates it into the
	// format-agnostic model and validates it. Structural problems are
	// reported as *MalformedConfigError.
	Load(ctx context.Context, path string) (*Pipeline, error)
}
