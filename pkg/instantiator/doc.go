// Package instantiator implements the Deterministic Program Instantiator
// (component E): pre-flight validation of a declarative ProgramConfig and
// the ordered, leaf-first instantiation procedure that predicts every
// artifact's address, deploys it, wires the authorization/processor/bridge
// graph, and persists the result to the registry.
package instantiator
