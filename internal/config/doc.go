// Package config defines the format-agnostic model of a pipeline
// definition: the set of stages, the shared global-parameter bundles they
// reference, and the pre-flight dependency list. Format-specific loaders
// (HCL, YAML) translate their documents into this model; everything
// downstream of loading operates on it exclusively.
package config
