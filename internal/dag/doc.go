// Package dag builds and validates the stage dependency graph.
//
// Stages reference each other by name, so the graph is stored as an
// index-based adjacency structure (name to index, adjacency lists over
// indices) rather than a pointer graph. Indices follow declaration order,
// which is what makes the topological tie-breaking deterministic.
package dag
