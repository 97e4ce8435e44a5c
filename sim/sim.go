// Package sim executes mesh-for tasks on the host the way a device runs
// them: one cooperative group per patch, BlockDim workers per group, a
// shared block-local byte buffer per group and an implicit barrier
// between the prologues and the body.
//
// Every global and block-local access is recorded in a Trace, which makes
// the simulator suitable for checking that a transformed task reads the
// same values as the original.
package sim

import (
	"fmt"

	"github.com/gogpu/meshc/ir"
)

// RelationFunc returns the k-th element of type to adjacent to the
// patch-local element idx of type from, as a patch-local index.
type RelationFunc func(patch int, from ir.ElementType, idx int64, to ir.ElementType, k int64) (int64, error)

// Data is the device-side state of a mesh.
type Data struct {
	NumPatches int

	// Fields holds the contents of every global field. Integers and
	// bools are stored as their values, floats as their IEEE bits.
	Fields map[*ir.Field][]int64

	// Owned holds, per element type, the number of elements each patch
	// iterates over in the task body.
	Owned map[ir.ElementType][]int

	Relation RelationFunc
}

// NewData returns empty state for numPatches patches.
func NewData(numPatches int) *Data {
	return &Data{
		NumPatches: numPatches,
		Fields:     make(map[*ir.Field][]int64),
		Owned:      make(map[ir.ElementType][]int),
	}
}

// Phase tells which part of a task issued an access.
type Phase uint8

const (
	PhasePrologue Phase = iota
	PhaseBody
)

func (p Phase) String() string {
	if p == PhasePrologue {
		return "prologue"
	}
	return "body"
}

// Op is the direction of an access.
type Op uint8

const (
	OpLoad Op = iota
	OpStore
)

// Access is one recorded memory access.
type Access struct {
	Op     Op
	Space  ir.AddressSpace
	Phase  Phase
	Patch  int
	Worker int

	// Field and Index locate storage accesses. Offset is the byte offset
	// of block-local accesses.
	Field  *ir.Field
	Index  int64
	Offset uint32

	Value int64
}

// Trace is the ordered list of accesses of a run.
type Trace struct {
	Accesses []Access
}

// Filter returns the accesses for which keep returns true.
func (tr *Trace) Filter(keep func(Access) bool) []Access {
	var out []Access
	for _, a := range tr.Accesses {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Options configures a run.
type Options struct {
	// MaxIterations bounds every while loop. Zero means 1<<20.
	MaxIterations int
}

// Run executes t for every patch of data and returns the trace. Stores
// to global fields update data in place. t is type checked first.
func Run(t *ir.Task, data *Data, opts Options) (*Trace, error) {
	if t.Kind != ir.TaskMeshFor {
		return nil, fmt.Errorf("sim: task %s is %s, only mesh_for is supported", t.Name, t.Kind)
	}
	if t.BlockDim == 0 {
		return nil, fmt.Errorf("sim: task %s has zero block dim", t.Name)
	}
	if err := ir.TypeCheck(t); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = 1 << 20
	}

	tr := &Trace{}
	for p := 0; p < data.NumPatches; p++ {
		if err := runPatch(t, data, opts, tr, p); err != nil {
			return tr, fmt.Errorf("sim: task %s, patch %d: %w", t.Name, p, err)
		}
	}
	return tr, nil
}

func runPatch(t *ir.Task, data *Data, opts Options, tr *Trace, patch int) error {
	g := &group{
		task:  t,
		data:  data,
		opts:  opts,
		trace: tr,
		patch: patch,
		bls:   make([]byte, t.BLSSize),
	}

	workers := make([]*worker, t.BlockDim)
	for w := range workers {
		wk := g.newWorker(w)
		wk.phase = PhasePrologue
		wk.linear = int64(w)
		for _, b := range []*ir.Block{t.MeshPrologue, t.BLSPrologue} {
			if b == nil {
				continue
			}
			if _, err := wk.execBlock(b); err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
		}
		workers[w] = wk
	}

	// Every worker has finished its prologues before any body runs.
	owned, err := g.ownedCount()
	if err != nil {
		return err
	}
	for i := 0; i < owned; i++ {
		wk := workers[i%len(workers)]
		wk.phase = PhaseBody
		wk.linear = int64(i)
		wk.loopIndex = int64(i)
		if _, err := wk.execBlock(t.Body); err != nil {
			return fmt.Errorf("worker %d, element %d: %w", wk.id, i, err)
		}
	}
	return nil
}

type group struct {
	task  *ir.Task
	data  *Data
	opts  Options
	trace *Trace
	patch int
	bls   []byte
}

func (g *group) ownedCount() (int, error) {
	counts, ok := g.data.Owned[g.task.MajorType]
	if !ok || g.patch >= len(counts) {
		return 0, fmt.Errorf("no owned %s count", g.task.MajorType)
	}
	return counts[g.patch], nil
}

func (g *group) record(a Access) {
	a.Patch = g.patch
	g.trace.Accesses = append(g.trace.Accesses, a)
}
