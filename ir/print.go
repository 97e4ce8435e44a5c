package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a textual dump of root to w.
func Fprint(w io.Writer, root Node) error {
	p := &printer{}
	switch r := root.(type) {
	case *Kernel:
		fmt.Fprintf(&p.sb, "kernel %s {\n", r.Name)
		p.depth++
		for _, t := range r.Tasks {
			p.task(t)
		}
		p.depth--
		p.sb.WriteString("}\n")
	case *Task:
		p.task(r)
	default:
		return fmt.Errorf("print: unsupported root %T", root)
	}
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// Sprint returns the textual dump of root.
func Sprint(root Node) string {
	var sb strings.Builder
	if err := Fprint(&sb, root); err != nil {
		return err.Error()
	}
	return sb.String()
}

type printer struct {
	sb    strings.Builder
	depth int
	cur   *Task
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.depth))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) task(t *Task) {
	p.cur = t
	header := fmt.Sprintf("task %s %s block_dim=%d", t.Name, t.Kind, t.BlockDim)
	if t.Mesh != nil {
		header += fmt.Sprintf(" mesh=%s major=%s", t.Mesh.Name, t.MajorType)
	}
	if t.BLSSize != 0 {
		header += fmt.Sprintf(" bls_size=%d", t.BLSSize)
	}
	p.line("%s {", header)
	p.depth++
	for _, slot := range t.BLSSlots {
		p.line("bls %s.%s [%d, %d)", slot.Element, slot.Conv, slot.Offset, slot.End())
	}
	p.block("mesh_prologue", t.MeshPrologue)
	p.block("bls_prologue", t.BLSPrologue)
	p.block("body", t.Body)
	p.depth--
	p.line("}")
}

func (p *printer) block(name string, b *Block) {
	if b == nil {
		return
	}
	p.line("%s {", name)
	p.depth++
	p.stmts(b)
	p.depth--
	p.line("}")
}

func (p *printer) stmts(b *Block) {
	for _, h := range b.Stmts {
		s := p.cur.Stmt(h)
		if s == nil {
			p.line("$%d : <erased>", h)
			continue
		}
		prefix := fmt.Sprintf("$%d : %s = ", h, TypeString(s.Type))
		switch k := s.Kind.(type) {
		case While:
			p.line("%swhile {", prefix)
			p.depth++
			p.stmts(k.Body)
			p.depth--
			p.line("}")
		case If:
			p.line("%sif $%d {", prefix, k.Cond)
			p.depth++
			p.stmts(k.Accept)
			p.depth--
			if k.Reject != nil {
				p.line("} else {")
				p.depth++
				p.stmts(k.Reject)
				p.depth--
			}
			p.line("}")
		default:
			p.line("%s%s", prefix, FormatKind(s.Kind))
		}
	}
}

// FormatKind formats a non-block statement kind.
func FormatKind(kind StmtKind) string {
	switch k := kind.(type) {
	case Const:
		return fmt.Sprintf("const %v", k.Value)
	case LoopLinearIndex:
		return "loop_linear_index"
	case LoopIndex:
		return fmt.Sprintf("loop_index %d (%s)", k.Index, k.MeshIndexType)
	case MeshPatchIndex:
		return "mesh_patch_idx"
	case MeshRelationAccess:
		return fmt.Sprintf("mesh_relation_access %s $%d -> %s[$%d]", meshName(k.Mesh), k.MeshIdx, k.ToType, k.Neighbor)
	case MeshIndexConversion:
		return fmt.Sprintf("mesh_idx_conversion %s %s $%d", meshName(k.Mesh), k.ConvType, k.Idx)
	case Alloca:
		return fmt.Sprintf("alloca %s", k.Type)
	case LocalLoad:
		return fmt.Sprintf("local_load $%d", k.Ptr)
	case LocalStore:
		return fmt.Sprintf("local_store $%d <- $%d", k.Ptr, k.Value)
	case BinaryOp:
		return fmt.Sprintf("%s $%d $%d", k.Op, k.Left, k.Right)
	case WhileControl:
		return fmt.Sprintf("while_control $%d", k.Cond)
	case While:
		return "while"
	case If:
		return fmt.Sprintf("if $%d", k.Cond)
	case BlockLocalPtr:
		return fmt.Sprintf("block_local_ptr $%d (%s)", k.Offset, k.ElemType)
	case GlobalPtr:
		idx := make([]string, len(k.Indices))
		for i, h := range k.Indices {
			idx[i] = fmt.Sprintf("$%d", h)
		}
		name := "<nil>"
		if k.Field != nil {
			name = k.Field.Name
		}
		return fmt.Sprintf("global_ptr %s[%s]", name, strings.Join(idx, ", "))
	case GlobalLoad:
		return fmt.Sprintf("global_load $%d", k.Ptr)
	case GlobalStore:
		return fmt.Sprintf("global_store $%d <- $%d", k.Ptr, k.Value)
	default:
		return fmt.Sprintf("%T", kind)
	}
}

func meshName(m *Mesh) string {
	if m == nil {
		return "<nil>"
	}
	return m.Name
}
