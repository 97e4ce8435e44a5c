package transform

import (
	"github.com/gogpu/meshc/ir"
)

// emitPrologue appends to t's block-local prologue a cooperative copy of
// the active slice of table into slot. Each worker starts at its linear
// index and strides by the group width:
//
//	i := threadIdx
//	while i < count {
//	    bls[slot.Offset + i*size] = table[offset + i]
//	    i += blockDim
//	}
func emitPrologue(t *ir.Task, table *ir.Field, slot ir.BLSSlot, count, offset ir.StmtHandle) {
	if t.BLSPrologue == nil {
		t.BLSPrologue = &ir.Block{}
	}
	elemType := table.Type

	b := t.NewBuilder()
	threadIdx := b.Push(ir.LoopLinearIndex{})
	idx := b.Push(ir.Alloca{Type: ir.I32})
	b.Push(ir.LocalStore{Ptr: idx, Value: threadIdx})
	blsBase := b.Push(ir.Const{Value: ir.LiteralI32(slot.Offset)})
	blockDim := b.Push(ir.Const{Value: ir.LiteralI32(t.BlockDim)})

	body := t.NewBuilder()
	idxVal := body.Push(ir.LocalLoad{Ptr: idx})
	cond := body.Push(ir.BinaryOp{Op: ir.BinaryCmpLT, Left: idxVal, Right: count})
	body.Push(ir.WhileControl{Cond: cond})
	elemSize := body.Push(ir.Const{Value: ir.LiteralI32(elemType.Size())})
	idxBytes := body.Push(ir.BinaryOp{Op: ir.BinaryMul, Left: idxVal, Right: elemSize})
	blsOffset := body.Push(ir.BinaryOp{Op: ir.BinaryAdd, Left: blsBase, Right: idxBytes})
	blsPtr := body.Push(ir.BlockLocalPtr{Offset: blsOffset, ElemType: elemType})
	globalIdx := body.Push(ir.BinaryOp{Op: ir.BinaryAdd, Left: offset, Right: idxVal})
	globalPtr := body.Push(ir.GlobalPtr{Field: table, Indices: []ir.StmtHandle{globalIdx}})
	value := body.Push(ir.GlobalLoad{Ptr: globalPtr})
	body.Push(ir.GlobalStore{Ptr: blsPtr, Value: value})
	next := body.Push(ir.BinaryOp{Op: ir.BinaryAdd, Left: idxVal, Right: blockDim})
	body.Push(ir.LocalStore{Ptr: idx, Value: next})

	b.Push(ir.While{Body: body.Block()})
	t.BLSPrologue.Append(b.Stmts()...)
}
