package transform

import (
	"testing"

	"github.com/gogpu/meshc/ir"
)

// fixture is a mesh-for task over vertices whose body converts the loop
// index and one relation neighbour to global numbering and reads x.
type fixture struct {
	mesh *ir.Mesh
	task *ir.Task
	x    *ir.Field

	loop     ir.StmtHandle
	relation ir.StmtHandle
	convLoop ir.StmtHandle
	convRel  ir.StmtHandle
	readLoop ir.StmtHandle // GlobalPtr x[convLoop]
	readRel  ir.StmtHandle // GlobalPtr x[convRel]
}

func newMesh() *ir.Mesh {
	return &ir.Mesh{
		Name: "bunny",
		L2G: map[ir.ElementType]*ir.Field{
			ir.Vertex: {Name: "bunny.verts.l2g", Type: ir.I32},
			ir.Edge:   {Name: "bunny.edges.l2g", Type: ir.I32},
		},
		L2R: map[ir.ElementType]*ir.Field{
			ir.Vertex: {Name: "bunny.verts.l2r", Type: ir.I32},
		},
		PatchMaxElementNum: map[ir.ElementType]uint32{
			ir.Vertex: 100,
			ir.Edge:   300,
		},
	}
}

// newFixture builds the task with vertex count 57 and offset 1000 and a
// group width of 32.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mesh: newMesh(), x: &ir.Field{Name: "x", Type: ir.I32}}
	task := ir.NewTask("mesh_for_0", ir.TaskMeshFor, 32)
	task.Mesh = f.mesh
	task.MajorType = ir.Vertex

	pro := task.NewBuilder()
	task.TotalNumLocal[ir.Vertex] = pro.Push(ir.Const{Value: ir.LiteralI32(57)})
	task.TotalOffsetLocal[ir.Vertex] = pro.Push(ir.Const{Value: ir.LiteralI32(1000)})
	task.MeshPrologue.Append(pro.Stmts()...)

	b := task.NewBuilder()
	f.loop = b.Push(ir.LoopIndex{MeshIndexType: ir.Vertex})
	f.convLoop = b.Push(ir.MeshIndexConversion{Mesh: f.mesh, ConvType: ir.L2G, Idx: f.loop})
	f.readLoop = b.Push(ir.GlobalPtr{Field: f.x, Indices: []ir.StmtHandle{f.convLoop}})
	b.Push(ir.GlobalLoad{Ptr: f.readLoop})
	neighbor := b.Push(ir.Const{Value: ir.LiteralI32(1)})
	f.relation = b.Push(ir.MeshRelationAccess{Mesh: f.mesh, MeshIdx: f.loop, ToType: ir.Vertex, Neighbor: neighbor})
	f.convRel = b.Push(ir.MeshIndexConversion{Mesh: f.mesh, ConvType: ir.L2G, Idx: f.relation})
	f.readRel = b.Push(ir.GlobalPtr{Field: f.x, Indices: []ir.StmtHandle{f.convRel}})
	b.Push(ir.GlobalLoad{Ptr: f.readRel})
	task.Body.Append(b.Stmts()...)

	f.task = task
	return f
}

func mustValidate(t *testing.T, root ir.Node) {
	t.Helper()
	errs, err := ir.Validate(root)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, e := range errs {
		t.Errorf("validation: %v", e)
	}
}

func countKind[K ir.StmtKind](task *ir.Task, b *ir.Block) int {
	return len(task.Gather(b, func(_ ir.StmtHandle, kind ir.StmtKind) bool {
		_, ok := kind.(K)
		return ok
	}))
}
