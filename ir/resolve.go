package ir

import (
	"errors"
	"fmt"
)

// TypeError reports an ill-typed statement.
type TypeError struct {
	Task    string
	Stmt    StmtHandle
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("in task %s, statement $%d: %s", e.Task, e.Stmt, e.Message)
}

// TypeCheck infers the type of every live statement of every task under
// root and rejects ill-typed statements. Previously inferred types are
// discarded first.
func TypeCheck(root Node) error {
	tasks := Tasks(root)
	if tasks == nil {
		return fmt.Errorf("type check: unsupported root %T", root)
	}
	var errs []error
	for _, t := range tasks {
		if err := typeCheckTask(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type typeChecker struct {
	task     *Task
	visiting map[StmtHandle]bool
}

func typeCheckTask(t *Task) error {
	for i := range t.Stmts {
		t.Stmts[i].Type = nil
	}
	c := &typeChecker{task: t, visiting: make(map[StmtHandle]bool)}
	for i := range t.Stmts {
		if t.Stmts[i].Kind == nil {
			continue
		}
		if _, err := c.resolve(StmtHandle(i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *typeChecker) errorf(h StmtHandle, format string, args ...any) error {
	return &TypeError{Task: c.task.Name, Stmt: h, Message: fmt.Sprintf(format, args...)}
}

// ResolveStmtType returns the type of h in t, inferring it and its
// operands' types if needed.
func ResolveStmtType(t *Task, h StmtHandle) (TypeInner, error) {
	c := &typeChecker{task: t, visiting: make(map[StmtHandle]bool)}
	return c.resolve(h)
}

func (c *typeChecker) resolve(h StmtHandle) (TypeInner, error) {
	s := c.task.Stmt(h)
	if s == nil {
		return nil, c.errorf(h, "reference to erased or missing statement")
	}
	if s.Type != nil {
		return s.Type, nil
	}
	if c.visiting[h] {
		return nil, c.errorf(h, "statement depends on itself")
	}
	c.visiting[h] = true
	defer delete(c.visiting, h)

	typ, err := c.infer(h, s.Kind)
	if err != nil {
		return nil, err
	}
	s = c.task.Stmt(h)
	s.Type = typ
	return typ, nil
}

//nolint:gocyclo,cyclop,funlen // Type inference requires handling all statement kinds
func (c *typeChecker) infer(h StmtHandle, kind StmtKind) (TypeInner, error) {
	switch k := kind.(type) {
	case Const:
		return resolveLiteralType(k.Value)
	case LoopLinearIndex, LoopIndex, MeshPatchIndex:
		return I32, nil
	case MeshRelationAccess:
		if k.Mesh == nil {
			return nil, c.errorf(h, "relation access without mesh")
		}
		if err := c.expectInteger(h, k.MeshIdx, "relation source index"); err != nil {
			return nil, err
		}
		if err := c.expectInteger(h, k.Neighbor, "relation neighbor index"); err != nil {
			return nil, err
		}
		return I32, nil
	case MeshIndexConversion:
		if k.Mesh == nil {
			return nil, c.errorf(h, "index conversion without mesh")
		}
		if err := c.expectInteger(h, k.Idx, "conversion index"); err != nil {
			return nil, err
		}
		return c.conversionType(h, k)
	case Alloca:
		return PointerType{Base: k.Type, Space: SpaceFunction}, nil
	case LocalLoad:
		ptr, err := c.pointer(h, k.Ptr, SpaceFunction)
		if err != nil {
			return nil, err
		}
		return ptr.Base, nil
	case LocalStore:
		return c.store(h, k.Ptr, k.Value, SpaceFunction)
	case BinaryOp:
		return c.binary(h, k)
	case WhileControl:
		if err := c.expectBool(h, k.Cond); err != nil {
			return nil, err
		}
		return VoidType{}, nil
	case While:
		if k.Body == nil {
			return nil, c.errorf(h, "while without body")
		}
		return VoidType{}, nil
	case If:
		if k.Accept == nil {
			return nil, c.errorf(h, "if without accept block")
		}
		if err := c.expectBool(h, k.Cond); err != nil {
			return nil, err
		}
		return VoidType{}, nil
	case BlockLocalPtr:
		if err := c.expectInteger(h, k.Offset, "block-local byte offset"); err != nil {
			return nil, err
		}
		return PointerType{Base: k.ElemType, Space: SpaceWorkGroup}, nil
	case GlobalPtr:
		if k.Field == nil {
			return nil, c.errorf(h, "global pointer without field")
		}
		if len(k.Indices) == 0 {
			return nil, c.errorf(h, "global pointer into %s without indices", k.Field.Name)
		}
		for _, idx := range k.Indices {
			if err := c.expectInteger(h, idx, "global index"); err != nil {
				return nil, err
			}
		}
		return PointerType{Base: k.Field.Type, Space: SpaceStorage}, nil
	case GlobalLoad:
		ptr, err := c.pointer(h, k.Ptr, SpaceStorage, SpaceWorkGroup)
		if err != nil {
			return nil, err
		}
		return ptr.Base, nil
	case GlobalStore:
		return c.store(h, k.Ptr, k.Value, SpaceStorage, SpaceWorkGroup)
	default:
		return nil, c.errorf(h, "unsupported statement kind %T", kind)
	}
}

// conversionType returns the element type of the table read by k. A
// conversion whose table cannot be determined yields an i32 index.
func (c *typeChecker) conversionType(h StmtHandle, k MeshIndexConversion) (TypeInner, error) {
	src, ok := c.task.KindOf(k.Idx).(MeshIndexSource)
	if !ok {
		return I32, nil
	}
	table, err := k.Mesh.Table(src.SourceElementType(), k.ConvType)
	if err != nil {
		return I32, nil
	}
	if !table.Type.Kind.IsInteger() {
		return nil, c.errorf(h, "conversion table %s has type %s, want an integer", table.Name, table.Type)
	}
	return table.Type, nil
}

func resolveLiteralType(v LiteralValue) (TypeInner, error) {
	switch v.(type) {
	case LiteralI32:
		return I32, nil
	case LiteralU32:
		return U32, nil
	case LiteralF32:
		return F32, nil
	case LiteralBool:
		return Bool, nil
	default:
		return nil, fmt.Errorf("unknown literal type: %T", v)
	}
}

func (c *typeChecker) scalar(user, h StmtHandle) (ScalarType, error) {
	typ, err := c.resolve(h)
	if err != nil {
		return ScalarType{}, err
	}
	s, ok := typ.(ScalarType)
	if !ok {
		return ScalarType{}, c.errorf(user, "operand $%d has type %s, want a scalar", h, TypeString(typ))
	}
	return s, nil
}

func (c *typeChecker) expectInteger(user, h StmtHandle, what string) error {
	s, err := c.scalar(user, h)
	if err != nil {
		return err
	}
	if !s.Kind.IsInteger() {
		return c.errorf(user, "%s $%d has type %s, want an integer", what, h, s)
	}
	return nil
}

func (c *typeChecker) expectBool(user, h StmtHandle) error {
	s, err := c.scalar(user, h)
	if err != nil {
		return err
	}
	if s != Bool {
		return c.errorf(user, "condition $%d has type %s, want bool", h, s)
	}
	return nil
}

func (c *typeChecker) pointer(user, h StmtHandle, spaces ...AddressSpace) (PointerType, error) {
	typ, err := c.resolve(h)
	if err != nil {
		return PointerType{}, err
	}
	ptr, ok := typ.(PointerType)
	if !ok {
		return PointerType{}, c.errorf(user, "operand $%d has type %s, want a pointer", h, TypeString(typ))
	}
	for _, space := range spaces {
		if ptr.Space == space {
			return ptr, nil
		}
	}
	return PointerType{}, c.errorf(user, "pointer $%d is in the %s address space", h, ptr.Space)
}

func (c *typeChecker) store(user, ptrH, valueH StmtHandle, spaces ...AddressSpace) (TypeInner, error) {
	ptr, err := c.pointer(user, ptrH, spaces...)
	if err != nil {
		return nil, err
	}
	value, err := c.resolve(valueH)
	if err != nil {
		return nil, err
	}
	if !typeInnerEqual(ptr.Base, value) {
		return nil, c.errorf(user, "storing %s through %s", TypeString(value), ptr)
	}
	return VoidType{}, nil
}

func (c *typeChecker) binary(h StmtHandle, k BinaryOp) (TypeInner, error) {
	left, err := c.scalar(h, k.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.scalar(h, k.Right)
	if err != nil {
		return nil, err
	}
	if left != right {
		return nil, c.errorf(h, "%s operands have mismatched types %s and %s", k.Op, left, right)
	}
	if k.Op.IsComparison() {
		return Bool, nil
	}
	if left.Kind == ScalarBool {
		return nil, c.errorf(h, "%s on bool operands", k.Op)
	}
	return left, nil
}
