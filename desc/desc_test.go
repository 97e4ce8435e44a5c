package desc

import (
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/sim"
	"github.com/gogpu/meshc/transform"
)

const laplacian = `{
  "name": "laplacian",
  "fields": [
    {"name": "x", "type": "i32", "size": 256},
    {"name": "y", "type": "i32", "size": 256}
  ],
  "meshes": [{
    "name": "bunny",
    "patches": 3,
    "elements": {
      "verts": {"capacity": 64, "tables": ["l2g", "l2r"], "counts": [57, 60, 33], "owned": [50, 52, 30]},
      "edges": {"tables": ["l2g"], "counts": [120, 100, 90]}
    }
  }],
  "tasks": [
    {
      "name": "mesh_for_0", "kind": "mesh_for", "block_dim": 32,
      "mesh": "bunny", "major": "verts",
      "metadata": {"verts": {"patch": true}},
      "body": [
        {"index": "loop", "conv": "l2g", "read": "x"},
        {"index": "relation", "to": "verts", "neighbor": 2, "conv": "l2g", "read": "x", "store": "y"}
      ]
    },
    {"name": "serial_1", "kind": "serial"}
  ]
}`

func mustDecode(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return p
}

func TestDecode(t *testing.T) {
	p := mustDecode(t, laplacian)

	if p.Kernel.Name != "laplacian" || len(p.Kernel.Tasks) != 2 {
		t.Fatalf("kernel = %s with %d tasks", p.Kernel.Name, len(p.Kernel.Tasks))
	}
	mesh := p.Meshes["bunny"]
	if mesh == nil {
		t.Fatal("mesh bunny missing")
	}
	if got := mesh.PatchMaxElementNum[ir.Vertex]; got != 64 {
		t.Errorf("vertex capacity = %d, want 64", got)
	}
	if got := mesh.PatchMaxElementNum[ir.Edge]; got != 120 {
		t.Errorf("edge capacity = %d, want the largest count 120", got)
	}
	if f := mesh.L2G[ir.Vertex]; f == nil || f.Name != "bunny.verts.l2g" {
		t.Errorf("vertex l2g table = %v", f)
	}
	if _, ok := mesh.L2R[ir.Edge]; ok {
		t.Errorf("edge l2r table present")
	}

	task := p.Kernel.Tasks[0]
	if task.Kind != ir.TaskMeshFor || task.BlockDim != 32 || task.Mesh != mesh || task.MajorType != ir.Vertex {
		t.Errorf("task header = %s %d %v %s", task.Kind, task.BlockDim, task.Mesh, task.MajorType)
	}
	count := task.KindOf(task.TotalNumLocal[ir.Vertex])
	if _, ok := count.(ir.GlobalLoad); !ok {
		t.Errorf("count metadata = %s, want a patch table load", ir.FormatKind(count))
	}
	convs := task.Gather(task.Body, func(_ ir.StmtHandle, kind ir.StmtKind) bool {
		_, ok := kind.(ir.MeshIndexConversion)
		return ok
	})
	// Two accesses plus the store destination.
	if len(convs) != 3 {
		t.Errorf("%d conversions in body, want 3", len(convs))
	}

	if p.Kernel.Tasks[1].Kind != ir.TaskSerial {
		t.Errorf("second task kind = %s", p.Kernel.Tasks[1].Kind)
	}
	if err := ir.TypeCheck(p.Kernel); err != nil {
		t.Errorf("TypeCheck() error = %v", err)
	}
	if errs, err := ir.Validate(p.Kernel); err != nil || len(errs) != 0 {
		t.Errorf("Validate() = %v, %v", errs, err)
	}
}

func TestDecode_ConstantMetadata(t *testing.T) {
	p := mustDecode(t, `{
	  "name": "k",
	  "meshes": [{"name": "m", "patches": 1, "elements": {"verts": {"capacity": 8, "tables": ["l2g"]}}}],
	  "tasks": [{"name": "t", "block_dim": 4, "mesh": "m", "major": "verts",
	    "metadata": {"verts": {"count": 5, "offset": 11}},
	    "body": [{"conv": "l2g"}]}]
	}`)
	task := p.Kernel.Tasks[0]
	tests := []struct {
		name string
		h    ir.StmtHandle
		want ir.LiteralValue
	}{
		{"count", task.TotalNumLocal[ir.Vertex], ir.LiteralI32(5)},
		{"offset", task.TotalOffsetLocal[ir.Vertex], ir.LiteralI32(11)},
	}
	for _, tt := range tests {
		c, ok := task.KindOf(tt.h).(ir.Const)
		if !ok || c.Value != tt.want {
			t.Errorf("%s metadata = %s, want const %v", tt.name, ir.FormatKind(task.KindOf(tt.h)), tt.want)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"malformed", `{`, "decode kernel description"},
		{"unknown key", `{"name": "k", "nope": 1}`, "unknown field"},
		{"bad field type", `{"fields": [{"name": "x", "type": "f16"}]}`, "unknown scalar type"},
		{"duplicate field", `{"fields": [{"name": "x"}, {"name": "x"}]}`, "duplicate field x"},
		{"bad element", `{"meshes": [{"name": "m", "elements": {"tets": {}}}]}`, "unknown element type"},
		{"g2r table", `{"meshes": [{"name": "m", "elements": {"verts": {"tables": ["g2r"]}}}]}`, "no g2r table"},
		{"count mismatch", `{"meshes": [{"name": "m", "patches": 2, "elements": {"verts": {"counts": [1]}}}]}`, "1 counts for 2 patches"},
		{"unknown mesh", `{"tasks": [{"name": "t", "mesh": "m"}]}`, "unknown mesh m"},
		{"unknown kind", `{"tasks": [{"name": "t", "kind": "loop"}]}`, "unknown task kind"},
		{"partial metadata", `{"meshes": [{"name": "m"}], "tasks": [{"name": "t", "mesh": "m", "metadata": {"verts": {"count": 1}}}]}`, "needs count and offset"},
		{"body without mesh", `{"tasks": [{"name": "t", "body": [{"conv": "l2g"}]}]}`, "without mesh"},
		{"unknown read", `{"meshes": [{"name": "m"}], "tasks": [{"name": "t", "mesh": "m", "body": [{"conv": "l2g", "read": "z"}]}]}`, "unknown field z"},
		{"unknown index", `{"meshes": [{"name": "m"}], "tasks": [{"name": "t", "mesh": "m", "body": [{"index": "self", "conv": "l2g"}]}]}`, "unknown index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			if err == nil {
				t.Fatalf("Decode() succeeded")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Decode() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSyntheticData(t *testing.T) {
	p := mustDecode(t, laplacian)
	data, err := p.SyntheticData("bunny")
	if err != nil {
		t.Fatalf("SyntheticData() error = %v", err)
	}
	mesh := p.Meshes["bunny"]

	if got, want := data.Fields[mesh.PatchOffset[ir.Vertex]], []int64{0, 57, 117}; !slices.Equal(got, want) {
		t.Errorf("vertex offsets = %v, want %v", got, want)
	}
	if got, want := data.Fields[mesh.PatchCount[ir.Vertex]], []int64{57, 60, 33}; !slices.Equal(got, want) {
		t.Errorf("vertex counts = %v, want %v", got, want)
	}
	l2g := data.Fields[mesh.L2G[ir.Vertex]]
	if len(l2g) != 150 || l2g[0] != 149 || l2g[149] != 0 {
		t.Errorf("l2g table has %d entries, ends %d..%d", len(l2g), l2g[0], l2g[len(l2g)-1])
	}
	if got := data.Owned[ir.Vertex]; !slices.Equal(got, []int{50, 52, 30}) {
		t.Errorf("owned vertices = %v", got)
	}
	if got := data.Owned[ir.Edge]; !slices.Equal(got, []int{120, 100, 90}) {
		t.Errorf("owned edges = %v, want the counts", got)
	}
	if v, err := data.Relation(1, ir.Vertex, 59, ir.Vertex, 0); err != nil || v != 0 {
		t.Errorf("Relation(1, 59, 0) = %d, %v, want 0", v, err)
	}
	if _, err := p.SyntheticData("dragon"); err == nil {
		t.Errorf("SyntheticData(unknown) succeeded")
	}
}

func TestSyntheticData_LocalizedMatchesOriginal(t *testing.T) {
	orig := mustDecode(t, laplacian)
	local := mustDecode(t, laplacian)
	if err := transform.MakeMeshIndexMappingLocal(local.Kernel, transform.DefaultOptions()); err != nil {
		t.Fatalf("MakeMeshIndexMappingLocal() error = %v", err)
	}

	run := func(p *Program) []int64 {
		t.Helper()
		data, err := p.SyntheticData("bunny")
		if err != nil {
			t.Fatalf("SyntheticData() error = %v", err)
		}
		if _, err := sim.Run(p.Kernel.Tasks[0], data, sim.Options{}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return data.Fields[p.Fields["y"]]
	}
	if want, got := run(orig), run(local); !slices.Equal(got, want) {
		t.Errorf("localized output differs:\noriginal  %v\nlocalized %v", want, got)
	}
	if got := local.Kernel.Tasks[0].BLSSize; got != 256 {
		t.Errorf("BLSSize = %d, want 256", got)
	}
}
