package ir

import "fmt"

// Node is the root of an IR tree handed to a pass: either a *Kernel
// holding a sequence of tasks or a single *Task.
type Node interface {
	node()
}

// Kernel is a compiled kernel split into offloaded tasks.
type Kernel struct {
	Name  string
	Tasks []*Task
}

func (*Kernel) node() {}

// StmtHandle references a statement in a task arena.
type StmtHandle uint32

// TypeInner represents the inner type kind.
type TypeInner interface {
	typeInner()
}

// ScalarType represents scalar types.
type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // in bytes
}

func (ScalarType) typeInner() {}

// Size returns the size of the scalar in bytes.
func (s ScalarType) Size() uint32 {
	return uint32(s.Width)
}

func (s ScalarType) String() string {
	switch s.Kind {
	case ScalarSint:
		return fmt.Sprintf("i%d", int(s.Width)*8)
	case ScalarUint:
		return fmt.Sprintf("u%d", int(s.Width)*8)
	case ScalarFloat:
		return fmt.Sprintf("f%d", int(s.Width)*8)
	case ScalarBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarSint  ScalarKind = iota // Signed integer
	ScalarUint                    // Unsigned integer
	ScalarFloat                   // Floating point
	ScalarBool                    // Boolean
)

// IsInteger reports whether the kind is a signed or unsigned integer.
func (k ScalarKind) IsInteger() bool {
	return k == ScalarSint || k == ScalarUint
}

// Common scalar types.
var (
	I32  = ScalarType{Kind: ScalarSint, Width: 4}
	U32  = ScalarType{Kind: ScalarUint, Width: 4}
	I64  = ScalarType{Kind: ScalarSint, Width: 8}
	F32  = ScalarType{Kind: ScalarFloat, Width: 4}
	Bool = ScalarType{Kind: ScalarBool, Width: 1}
)

// PointerType represents pointer types.
type PointerType struct {
	Base  ScalarType
	Space AddressSpace
}

func (PointerType) typeInner() {}

func (p PointerType) String() string {
	return fmt.Sprintf("ptr<%s, %s>", p.Space, p.Base)
}

// AddressSpace represents memory address spaces.
type AddressSpace uint8

const (
	// SpaceFunction holds per-worker locals created by Alloca.
	SpaceFunction AddressSpace = iota
	// SpaceStorage is slow global memory (mesh fields and tables).
	SpaceStorage
	// SpaceWorkGroup is block-local storage shared by one cooperative group.
	SpaceWorkGroup
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceFunction:
		return "function"
	case SpaceStorage:
		return "storage"
	case SpaceWorkGroup:
		return "workgroup"
	default:
		return "unknown"
	}
}

// TypeString formats a resolved type, or "?" if the statement has not
// been type checked.
func TypeString(t TypeInner) string {
	switch t := t.(type) {
	case ScalarType:
		return t.String()
	case PointerType:
		return t.String()
	case VoidType:
		return "void"
	case nil:
		return "?"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func typeInnerEqual(a, b TypeInner) bool {
	switch a := a.(type) {
	case ScalarType:
		bs, ok := b.(ScalarType)
		return ok && a == bs
	case PointerType:
		bp, ok := b.(PointerType)
		return ok && a == bp
	case VoidType:
		_, ok := b.(VoidType)
		return ok
	default:
		return false
	}
}

// VoidType is the type of statements that produce no value.
type VoidType struct{}

func (VoidType) typeInner() {}
