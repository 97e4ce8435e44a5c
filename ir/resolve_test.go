package ir

import (
	"errors"
	"strings"
	"testing"
)

func TestTypeCheck(t *testing.T) {
	f := &Field{Name: "x", Type: F32}
	m := &Mesh{Name: "m"}
	typed := &Mesh{
		Name: "typed",
		L2G: map[ElementType]*Field{
			Vertex: {Name: "typed.verts.l2g", Type: U32},
			Edge:   {Name: "typed.edges.l2g", Type: F32},
		},
	}

	tests := []struct {
		name    string
		build   func(b *Builder)
		want    string // type of the last statement
		wantErr string
	}{
		{
			name:  "i32 literal",
			build: func(b *Builder) { b.Push(Const{Value: LiteralI32(1)}) },
			want:  "i32",
		},
		{
			name:  "f32 literal",
			build: func(b *Builder) { b.Push(Const{Value: LiteralF32(1.5)}) },
			want:  "f32",
		},
		{
			name: "comparison",
			build: func(b *Builder) {
				x := b.Push(Const{Value: LiteralU32(1)})
				b.Push(BinaryOp{Op: BinaryCmpLE, Left: x, Right: x})
			},
			want: "bool",
		},
		{
			name: "mismatched operands",
			build: func(b *Builder) {
				x := b.Push(Const{Value: LiteralU32(1)})
				y := b.Push(Const{Value: LiteralI32(1)})
				b.Push(BinaryOp{Op: BinaryAdd, Left: x, Right: y})
			},
			wantErr: "mismatched types u32 and i32",
		},
		{
			name: "bool arithmetic",
			build: func(b *Builder) {
				x := b.Push(Const{Value: LiteralBool(true)})
				b.Push(BinaryOp{Op: BinaryMul, Left: x, Right: x})
			},
			wantErr: "mul on bool operands",
		},
		{
			name: "local pointer",
			build: func(b *Builder) {
				p := b.Push(Alloca{Type: I32})
				b.Push(LocalLoad{Ptr: p})
			},
			want: "i32",
		},
		{
			name: "local store type mismatch",
			build: func(b *Builder) {
				p := b.Push(Alloca{Type: I32})
				v := b.Push(Const{Value: LiteralF32(0)})
				b.Push(LocalStore{Ptr: p, Value: v})
			},
			wantErr: "storing f32 through ptr<function, i32>",
		},
		{
			name: "global load",
			build: func(b *Builder) {
				i := b.Push(LoopIndex{MeshIndexType: Vertex})
				p := b.Push(GlobalPtr{Field: f, Indices: []StmtHandle{i}})
				b.Push(GlobalLoad{Ptr: p})
			},
			want: "f32",
		},
		{
			name: "float index",
			build: func(b *Builder) {
				i := b.Push(Const{Value: LiteralF32(0)})
				b.Push(GlobalPtr{Field: f, Indices: []StmtHandle{i}})
			},
			wantErr: "global index",
		},
		{
			name: "global pointer without indices",
			build: func(b *Builder) {
				b.Push(GlobalPtr{Field: f})
			},
			wantErr: "without indices",
		},
		{
			name: "block-local pointer",
			build: func(b *Builder) {
				o := b.Push(Const{Value: LiteralI32(0)})
				b.Push(BlockLocalPtr{Offset: o, ElemType: I64})
			},
			want: "ptr<workgroup, i64>",
		},
		{
			name: "load through function pointer",
			build: func(b *Builder) {
				p := b.Push(Alloca{Type: I32})
				b.Push(GlobalLoad{Ptr: p})
			},
			wantErr: "function address space",
		},
		{
			name: "conversion",
			build: func(b *Builder) {
				i := b.Push(LoopIndex{MeshIndexType: Vertex})
				b.Push(MeshIndexConversion{Mesh: m, ConvType: L2G, Idx: i})
			},
			want: "i32",
		},
		{
			name: "conversion takes table type",
			build: func(b *Builder) {
				i := b.Push(LoopIndex{MeshIndexType: Vertex})
				b.Push(MeshIndexConversion{Mesh: typed, ConvType: L2G, Idx: i})
			},
			want: "u32",
		},
		{
			name: "float conversion table",
			build: func(b *Builder) {
				i := b.Push(LoopIndex{MeshIndexType: Edge})
				b.Push(MeshIndexConversion{Mesh: typed, ConvType: L2G, Idx: i})
			},
			wantErr: "want an integer",
		},
		{
			name: "conversion without mesh",
			build: func(b *Builder) {
				i := b.Push(LoopIndex{MeshIndexType: Vertex})
				b.Push(MeshIndexConversion{ConvType: L2G, Idx: i})
			},
			wantErr: "without mesh",
		},
		{
			name: "non-bool condition",
			build: func(b *Builder) {
				c := b.Push(Const{Value: LiteralI32(1)})
				b.Push(If{Cond: c, Accept: NewBlock()})
			},
			wantErr: "want bool",
		},
		{
			name: "missing operand",
			build: func(b *Builder) {
				b.Push(LocalLoad{Ptr: 99})
			},
			wantErr: "erased or missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask("t", TaskSerial, 0)
			b := task.NewBuilder()
			tt.build(b)
			task.Body.Append(b.Stmts()...)

			err := TypeCheck(task)
			if tt.wantErr != "" {
				var te *TypeError
				if !errors.As(err, &te) {
					t.Fatalf("TypeCheck() error = %v, want *TypeError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("TypeCheck() error = %q, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TypeCheck() error = %v", err)
			}
			last := b.Stmts()[len(b.Stmts())-1]
			if got := TypeString(task.Stmt(last).Type); got != tt.want {
				t.Errorf("type of $%d = %s, want %s", last, got, tt.want)
			}
		})
	}
}

func TestTypeCheck_ResetsStaleTypes(t *testing.T) {
	task := NewTask("t", TaskSerial, 0)
	h := task.NewStmt(Const{Value: LiteralI32(1)})
	task.Body.Append(h)
	task.Stmts[h].Type = F32

	if err := TypeCheck(task); err != nil {
		t.Fatalf("TypeCheck() error = %v", err)
	}
	if task.Stmts[h].Type != I32 {
		t.Errorf("type = %s, want i32", TypeString(task.Stmts[h].Type))
	}
}

func TestTypeCheck_Kernel(t *testing.T) {
	good := NewTask("good", TaskSerial, 0)
	good.Body.Append(good.NewStmt(Const{Value: LiteralI32(1)}))
	bad := NewTask("bad", TaskSerial, 0)
	bad.Body.Append(bad.NewStmt(LocalLoad{Ptr: 5}))

	err := TypeCheck(&Kernel{Name: "k", Tasks: []*Task{good, bad}})
	if err == nil || !strings.Contains(err.Error(), "in task bad") {
		t.Errorf("TypeCheck(kernel) error = %v, want an error in task bad", err)
	}
	if err := TypeCheck(nil); err == nil {
		t.Errorf("TypeCheck(nil) succeeded")
	}
}
