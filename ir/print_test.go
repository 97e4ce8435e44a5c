package ir

import (
	"bytes"
	"testing"
)

func TestSprint(t *testing.T) {
	m := &Mesh{Name: "bunny"}
	task := NewTask("mesh_for_0", TaskMeshFor, 32)
	task.Mesh = m
	task.MajorType = Vertex
	task.BLSSize = 400
	task.BLSSlots = []BLSSlot{{Element: Vertex, Conv: L2G, Offset: 0, Size: 400}}

	count := task.NewStmt(Const{Value: LiteralI32(57)})
	task.MeshPrologue.Append(count)
	b := task.NewBuilder()
	i := b.Push(LoopIndex{MeshIndexType: Vertex})
	c := b.Push(BinaryOp{Op: BinaryCmpLT, Left: i, Right: count})
	inner := task.NewBuilder()
	inner.Push(MeshIndexConversion{Mesh: m, ConvType: L2G, Idx: i})
	b.Push(If{Cond: c, Accept: inner.Block()})
	task.Body.Append(b.Stmts()...)

	if err := TypeCheck(task); err != nil {
		t.Fatalf("TypeCheck() error = %v", err)
	}

	want := `task mesh_for_0 mesh_for block_dim=32 mesh=bunny major=verts bls_size=400 {
  bls verts.l2g [0, 400)
  mesh_prologue {
    $0 : i32 = const 57
  }
  body {
    $1 : i32 = loop_index 0 (verts)
    $2 : bool = cmp_lt $1 $0
    $4 : void = if $2 {
      $3 : i32 = mesh_idx_conversion bunny l2g $1
    }
  }
}
`
	if got := Sprint(task); got != want {
		t.Errorf("Sprint() =\n%s\nwant\n%s", got, want)
	}
}

func TestFprint_Kernel(t *testing.T) {
	k := &Kernel{Name: "k", Tasks: []*Task{NewTask("a", TaskSerial, 0)}}
	var buf bytes.Buffer
	if err := Fprint(&buf, k); err != nil {
		t.Fatalf("Fprint() error = %v", err)
	}
	want := "kernel k {\n  task a serial block_dim=0 {\n    mesh_prologue {\n    }\n    body {\n    }\n  }\n}\n"
	if got := buf.String(); got != want {
		t.Errorf("Fprint() = %q, want %q", got, want)
	}
	if err := Fprint(&buf, nil); err == nil {
		t.Errorf("Fprint(nil) succeeded")
	}
}

func TestFormatKind(t *testing.T) {
	f := &Field{Name: "x", Type: I32}
	tests := []struct {
		kind StmtKind
		want string
	}{
		{LoopLinearIndex{}, "loop_linear_index"},
		{MeshPatchIndex{}, "mesh_patch_idx"},
		{Alloca{Type: I32}, "alloca i32"},
		{GlobalPtr{Field: f, Indices: []StmtHandle{1, 2}}, "global_ptr x[$1, $2]"},
		{GlobalStore{Ptr: 3, Value: 4}, "global_store $3 <- $4"},
		{BlockLocalPtr{Offset: 5, ElemType: I64}, "block_local_ptr $5 (i64)"},
		{BinaryOp{Op: BinaryMod, Left: 1, Right: 2}, "mod $1 $2"},
	}
	for _, tt := range tests {
		if got := FormatKind(tt.kind); got != tt.want {
			t.Errorf("FormatKind(%T) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
