package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/meshc/ir"
)

var errBreak = errors.New("while break")

// pointer is the runtime value of a pointer statement.
type pointer struct {
	space  ir.AddressSpace
	elem   ir.ScalarType
	field  *ir.Field
	index  int64
	offset uint32
	local  ir.StmtHandle
}

type worker struct {
	g  *group
	id int

	phase     Phase
	linear    int64
	loopIndex int64

	vals   map[ir.StmtHandle]int64
	ptrs   map[ir.StmtHandle]pointer
	locals map[ir.StmtHandle]int64
}

func (g *group) newWorker(id int) *worker {
	return &worker{
		g:      g,
		id:     id,
		vals:   make(map[ir.StmtHandle]int64),
		ptrs:   make(map[ir.StmtHandle]pointer),
		locals: make(map[ir.StmtHandle]int64),
	}
}

// execBlock runs b. It returns errBreak, unwrapped, when a WhileControl
// exits the enclosing loop.
func (w *worker) execBlock(b *ir.Block) (bool, error) {
	for _, h := range b.Stmts {
		if err := w.exec(h); err != nil {
			if errors.Is(err, errBreak) {
				return true, err
			}
			return false, err
		}
	}
	return false, nil
}

func (w *worker) value(h ir.StmtHandle) (int64, error) {
	v, ok := w.vals[h]
	if !ok {
		return 0, fmt.Errorf("$%d has no value", h)
	}
	return v, nil
}

func (w *worker) pointer(h ir.StmtHandle) (pointer, error) {
	p, ok := w.ptrs[h]
	if !ok {
		return pointer{}, fmt.Errorf("$%d is not a pointer", h)
	}
	return p, nil
}

//nolint:gocyclo,cyclop,funlen // The interpreter handles every statement kind
func (w *worker) exec(h ir.StmtHandle) error {
	t := w.g.task
	s := t.Stmt(h)
	if s == nil {
		return fmt.Errorf("$%d is erased", h)
	}

	switch k := s.Kind.(type) {
	case ir.Const:
		v, err := literalValue(k.Value)
		if err != nil {
			return err
		}
		w.vals[h] = v
	case ir.LoopLinearIndex:
		w.vals[h] = w.linear
	case ir.LoopIndex:
		w.vals[h] = w.loopIndex
	case ir.MeshPatchIndex:
		w.vals[h] = int64(w.g.patch)
	case ir.MeshRelationAccess:
		return w.relation(h, k)
	case ir.MeshIndexConversion:
		return w.conversion(h, k)
	case ir.Alloca:
		w.locals[h] = 0
		w.ptrs[h] = pointer{space: ir.SpaceFunction, elem: k.Type, local: h}
	case ir.LocalLoad:
		p, err := w.pointer(k.Ptr)
		if err != nil {
			return err
		}
		w.vals[h] = w.locals[p.local]
	case ir.LocalStore:
		p, err := w.pointer(k.Ptr)
		if err != nil {
			return err
		}
		v, err := w.value(k.Value)
		if err != nil {
			return err
		}
		w.locals[p.local] = normalize(p.elem, v)
	case ir.BinaryOp:
		return w.binary(h, k)
	case ir.WhileControl:
		c, err := w.value(k.Cond)
		if err != nil {
			return err
		}
		if c == 0 {
			return errBreak
		}
	case ir.While:
		for i := 0; ; i++ {
			if i == w.g.opts.MaxIterations {
				return fmt.Errorf("$%d: while exceeded %d iterations", h, i)
			}
			broke, err := w.execBlock(k.Body)
			if broke {
				break
			}
			if err != nil {
				return err
			}
		}
	case ir.If:
		c, err := w.value(k.Cond)
		if err != nil {
			return err
		}
		b := k.Accept
		if c == 0 {
			b = k.Reject
		}
		if b != nil {
			if _, err := w.execBlock(b); err != nil {
				return err
			}
		}
	case ir.BlockLocalPtr:
		off, err := w.value(k.Offset)
		if err != nil {
			return err
		}
		if off < 0 {
			return fmt.Errorf("$%d: negative block-local offset %d", h, off)
		}
		w.ptrs[h] = pointer{space: ir.SpaceWorkGroup, elem: k.ElemType, offset: uint32(off)}
	case ir.GlobalPtr:
		if len(k.Indices) != 1 {
			return fmt.Errorf("$%d: %d indices, only flat fields are supported", h, len(k.Indices))
		}
		idx, err := w.value(k.Indices[0])
		if err != nil {
			return err
		}
		w.ptrs[h] = pointer{space: ir.SpaceStorage, elem: k.Field.Type, field: k.Field, index: idx}
	case ir.GlobalLoad:
		p, err := w.pointer(k.Ptr)
		if err != nil {
			return err
		}
		v, err := w.load(p)
		if err != nil {
			return fmt.Errorf("$%d: %w", h, err)
		}
		w.vals[h] = v
	case ir.GlobalStore:
		p, err := w.pointer(k.Ptr)
		if err != nil {
			return err
		}
		v, err := w.value(k.Value)
		if err != nil {
			return err
		}
		if err := w.store(p, v); err != nil {
			return fmt.Errorf("$%d: %w", h, err)
		}
	default:
		return fmt.Errorf("$%d: unsupported statement %T", h, s.Kind)
	}
	return nil
}

func (w *worker) relation(h ir.StmtHandle, k ir.MeshRelationAccess) error {
	if w.g.data.Relation == nil {
		return fmt.Errorf("$%d: no relation data", h)
	}
	src, ok := w.g.task.KindOf(k.MeshIdx).(ir.MeshIndexSource)
	if !ok {
		return fmt.Errorf("$%d: relation source $%d is not a mesh index", h, k.MeshIdx)
	}
	idx, err := w.value(k.MeshIdx)
	if err != nil {
		return err
	}
	n, err := w.value(k.Neighbor)
	if err != nil {
		return err
	}
	v, err := w.g.data.Relation(w.g.patch, src.SourceElementType(), idx, k.ToType, n)
	if err != nil {
		return fmt.Errorf("$%d: %w", h, err)
	}
	w.vals[h] = v
	return nil
}

// conversion reads table[offset + idx] straight from global memory,
// where offset is the task's base offset for the index's element type.
func (w *worker) conversion(h ir.StmtHandle, k ir.MeshIndexConversion) error {
	t := w.g.task
	src, ok := t.KindOf(k.Idx).(ir.MeshIndexSource)
	if !ok {
		return fmt.Errorf("$%d: conversion source $%d is not a mesh index", h, k.Idx)
	}
	elem := src.SourceElementType()
	table, err := k.Mesh.Table(elem, k.ConvType)
	if err != nil {
		return fmt.Errorf("$%d: %w", h, err)
	}
	offH, ok := t.TotalOffsetLocal[elem]
	if !ok {
		return fmt.Errorf("$%d: task has no %s offset", h, elem)
	}
	base, err := w.value(offH)
	if err != nil {
		return err
	}
	idx, err := w.value(k.Idx)
	if err != nil {
		return err
	}
	v, err := w.load(pointer{space: ir.SpaceStorage, elem: table.Type, field: table, index: base + idx})
	if err != nil {
		return fmt.Errorf("$%d: %w", h, err)
	}
	w.vals[h] = v
	return nil
}

func (w *worker) load(p pointer) (int64, error) {
	switch p.space {
	case ir.SpaceStorage:
		data := w.g.data.Fields[p.field]
		if p.index < 0 || p.index >= int64(len(data)) {
			return 0, fmt.Errorf("load %s[%d] out of bounds (len %d)", p.field.Name, p.index, len(data))
		}
		v := data[p.index]
		w.g.record(Access{Op: OpLoad, Space: p.space, Phase: w.phase, Worker: w.id, Field: p.field, Index: p.index, Value: v})
		return v, nil
	case ir.SpaceWorkGroup:
		v, err := readBLS(w.g.bls, p.offset, p.elem)
		if err != nil {
			return 0, err
		}
		w.g.record(Access{Op: OpLoad, Space: p.space, Phase: w.phase, Worker: w.id, Offset: p.offset, Value: v})
		return v, nil
	default:
		return 0, fmt.Errorf("load from %s pointer", p.space)
	}
}

func (w *worker) store(p pointer, v int64) error {
	v = normalize(p.elem, v)
	switch p.space {
	case ir.SpaceStorage:
		data := w.g.data.Fields[p.field]
		if p.index < 0 || p.index >= int64(len(data)) {
			return fmt.Errorf("store %s[%d] out of bounds (len %d)", p.field.Name, p.index, len(data))
		}
		data[p.index] = v
		w.g.record(Access{Op: OpStore, Space: p.space, Phase: w.phase, Worker: w.id, Field: p.field, Index: p.index, Value: v})
		return nil
	case ir.SpaceWorkGroup:
		if err := writeBLS(w.g.bls, p.offset, p.elem, v); err != nil {
			return err
		}
		w.g.record(Access{Op: OpStore, Space: p.space, Phase: w.phase, Worker: w.id, Offset: p.offset, Value: v})
		return nil
	default:
		return fmt.Errorf("store to %s pointer", p.space)
	}
}

func readBLS(bls []byte, off uint32, elem ir.ScalarType) (int64, error) {
	end := uint64(off) + uint64(elem.Width)
	if end > uint64(len(bls)) {
		return 0, fmt.Errorf("block-local load [%d, %d) out of bounds (size %d)", off, end, len(bls))
	}
	b := bls[off:end]
	switch elem.Width {
	case 1:
		return normalize(elem, int64(b[0])), nil
	case 4:
		return normalize(elem, int64(binary.LittleEndian.Uint32(b))), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("unsupported element width %d", elem.Width)
	}
}

func writeBLS(bls []byte, off uint32, elem ir.ScalarType, v int64) error {
	end := uint64(off) + uint64(elem.Width)
	if end > uint64(len(bls)) {
		return fmt.Errorf("block-local store [%d, %d) out of bounds (size %d)", off, end, len(bls))
	}
	b := bls[off:end]
	switch elem.Width {
	case 1:
		b[0] = byte(v)
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(v))
	default:
		return fmt.Errorf("unsupported element width %d", elem.Width)
	}
	return nil
}

// normalize truncates v to the range of typ.
func normalize(typ ir.ScalarType, v int64) int64 {
	switch {
	case typ.Kind == ir.ScalarBool:
		if v != 0 {
			return 1
		}
		return 0
	case typ.Width == 4 && typ.Kind == ir.ScalarSint:
		return int64(int32(v))
	case typ.Width == 4:
		return int64(uint32(v))
	case typ.Width == 1:
		return int64(uint8(v))
	default:
		return v
	}
}

func literalValue(v ir.LiteralValue) (int64, error) {
	switch v := v.(type) {
	case ir.LiteralI32:
		return int64(v), nil
	case ir.LiteralU32:
		return int64(v), nil
	case ir.LiteralF32:
		return int64(math.Float32bits(float32(v))), nil
	case ir.LiteralBool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown literal %T", v)
	}
}

func (w *worker) binary(h ir.StmtHandle, k ir.BinaryOp) error {
	l, err := w.value(k.Left)
	if err != nil {
		return err
	}
	r, err := w.value(k.Right)
	if err != nil {
		return err
	}
	typ, ok := w.g.task.Stmt(k.Left).Type.(ir.ScalarType)
	if !ok {
		return fmt.Errorf("$%d: untyped operand $%d", h, k.Left)
	}
	v, err := evalBinary(k.Op, typ, l, r)
	if err != nil {
		return fmt.Errorf("$%d: %w", h, err)
	}
	w.vals[h] = v
	return nil
}

func evalBinary(op ir.BinaryOperator, typ ir.ScalarType, l, r int64) (int64, error) {
	if typ.Kind == ir.ScalarFloat {
		return evalFloat(op, typ, l, r)
	}
	var v int64
	switch op {
	case ir.BinaryAdd:
		v = l + r
	case ir.BinarySub:
		v = l - r
	case ir.BinaryMul:
		v = l * r
	case ir.BinaryDiv, ir.BinaryMod:
		if r == 0 {
			return 0, errors.New("integer division by zero")
		}
		if op == ir.BinaryDiv {
			v = l / r
		} else {
			v = l % r
		}
	default:
		return compare(op, l < r, l == r), nil
	}
	return normalize(typ, v), nil
}

func evalFloat(op ir.BinaryOperator, typ ir.ScalarType, l, r int64) (int64, error) {
	if typ.Width != 4 {
		return 0, fmt.Errorf("unsupported float width %d", typ.Width)
	}
	a := math.Float32frombits(uint32(l))
	b := math.Float32frombits(uint32(r))
	var v float32
	switch op {
	case ir.BinaryAdd:
		v = a + b
	case ir.BinarySub:
		v = a - b
	case ir.BinaryMul:
		v = a * b
	case ir.BinaryDiv:
		v = a / b
	case ir.BinaryMod:
		v = float32(math.Mod(float64(a), float64(b)))
	default:
		return compare(op, a < b, a == b), nil
	}
	return int64(math.Float32bits(v)), nil
}

func compare(op ir.BinaryOperator, lt, eq bool) int64 {
	var c bool
	switch op {
	case ir.BinaryCmpLT:
		c = lt
	case ir.BinaryCmpLE:
		c = lt || eq
	case ir.BinaryCmpEQ:
		c = eq
	case ir.BinaryCmpNE:
		c = !eq
	}
	if c {
		return 1
	}
	return 0
}
