// Package registry implements the Registry (component F): persisted,
// per-program storage for the declared ProgramConfig plus the populated
// AuthorizationData the instantiator resolves, and the ProgramId allocator
// programs are reserved from.
package registry
