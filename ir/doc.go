// Package ir defines the intermediate representation for meshc.
//
// The IR models a kernel that has already been split into per-device
// tasks. Each task owns an arena of statements addressed by StmtHandle
// and three ordered blocks that reference the arena:
//   - MeshPrologue: per-patch metadata loads
//   - BLSPrologue: block-local storage staging, finished by every worker
//     of a group before any body runs
//   - Body: the per-element loop body
//
// # Ownership
//
// A Block exclusively owns the handles it lists. Operands are non-owning
// references resolved through the task arena, so structural edits never
// copy statements: ReplaceWith inserts a new sequence, redirects every use
// of the old handle and erases the old statement.
//
// # Passes
//
//   - TypeCheck infers a type for every live statement
//   - Validate checks references, ownership and def-before-use ordering
//   - Fprint writes a textual dump
package ir
