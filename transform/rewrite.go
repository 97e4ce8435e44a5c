package transform

import (
	"fmt"

	"github.com/gogpu/meshc/ir"
)

// sourceElementType returns the element type of the index converted by
// an index conversion. Only loop indices and relation accesses carry one.
func sourceElementType(t *ir.Task, idx ir.StmtHandle) (ir.ElementType, error) {
	kind := t.KindOf(idx)
	src, ok := kind.(ir.MeshIndexSource)
	if !ok {
		return 0, NewError(ErrNotImplemented, t.Name,
			fmt.Sprintf("index conversion source $%d is %s", idx, describeKind(kind)))
	}
	return src.SourceElementType(), nil
}

func describeKind(kind ir.StmtKind) string {
	if kind == nil {
		return "missing"
	}
	return ir.FormatKind(kind)
}

// matchingConversions returns the index conversions of t's body that
// read m through t's mesh.
func matchingConversions(t *ir.Task, m Mapping) ([]ir.StmtHandle, error) {
	var firstErr error
	matches := t.Gather(t.Body, func(_ ir.StmtHandle, kind ir.StmtKind) bool {
		conv, ok := kind.(ir.MeshIndexConversion)
		if !ok || conv.Mesh != t.Mesh || conv.ConvType != m.Conv {
			return false
		}
		from, err := sourceElementType(t, conv.Idx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return false
		}
		return from == m.Element
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return matches, nil
}

// rewriteConversions replaces the conversions in matches by loads from
// the block-local copy of table in slot.
func rewriteConversions(t *ir.Task, m Mapping, matches []ir.StmtHandle, table *ir.Field, slot ir.BLSSlot) error {
	for _, h := range matches {
		conv := t.KindOf(h).(ir.MeshIndexConversion)

		b := t.NewBuilder()
		blsBase := b.Push(ir.Const{Value: ir.LiteralI32(slot.Offset)})
		elemSize := b.Push(ir.Const{Value: ir.LiteralI32(table.Type.Size())})
		idxBytes := b.Push(ir.BinaryOp{Op: ir.BinaryMul, Left: conv.Idx, Right: elemSize})
		offset := b.Push(ir.BinaryOp{Op: ir.BinaryAdd, Left: blsBase, Right: idxBytes})
		ptr := b.Push(ir.BlockLocalPtr{Offset: offset, ElemType: table.Type})
		b.Push(ir.GlobalLoad{Ptr: ptr})

		if err := t.ReplaceWith(h, b.Stmts()); err != nil {
			return fmt.Errorf("rewrite %s: %w", m, err)
		}
	}
	return nil
}
