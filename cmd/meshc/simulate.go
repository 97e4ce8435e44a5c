package main

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/gogpu/meshc/desc"
	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/sim"
)

// compare runs every mesh-for task of the original description and of
// the localized program on synthetic data and reports global memory
// traffic. Stored field contents must match.
func compare(w io.Writer, source []byte, localized *desc.Program) error {
	original, err := desc.Decode(bytes.NewReader(source))
	if err != nil {
		return err
	}
	for i, t := range localized.Kernel.Tasks {
		if t.Kind != ir.TaskMeshFor || t.Mesh == nil {
			continue
		}
		before, beforeTrace, err := simulateTask(original, original.Kernel.Tasks[i])
		if err != nil {
			return fmt.Errorf("original %s: %w", t.Name, err)
		}
		after, afterTrace, err := simulateTask(localized, t)
		if err != nil {
			return fmt.Errorf("localized %s: %w", t.Name, err)
		}
		if err := sameStores(before, after, original, localized); err != nil {
			return fmt.Errorf("task %s: %w", t.Name, err)
		}
		fmt.Fprintf(w, "# %s: body global loads %d -> %d, block-local loads %d, prologue global loads %d\n",
			t.Name,
			countAccesses(beforeTrace, sim.PhaseBody, ir.SpaceStorage),
			countAccesses(afterTrace, sim.PhaseBody, ir.SpaceStorage),
			countAccesses(afterTrace, sim.PhaseBody, ir.SpaceWorkGroup),
			countAccesses(afterTrace, sim.PhasePrologue, ir.SpaceStorage))
	}
	return nil
}

func simulateTask(p *desc.Program, t *ir.Task) (*sim.Data, *sim.Trace, error) {
	data, err := p.SyntheticData(t.Mesh.Name)
	if err != nil {
		return nil, nil, err
	}
	tr, err := sim.Run(t, data, sim.Options{})
	if err != nil {
		return nil, nil, err
	}
	return data, tr, nil
}

// sameStores compares the attribute fields of two runs by name.
func sameStores(a, b *sim.Data, pa, pb *desc.Program) error {
	for _, name := range slices.Sorted(maps.Keys(pa.Fields)) {
		va, vb := a.Fields[pa.Fields[name]], b.Fields[pb.Fields[name]]
		if !slices.Equal(va, vb) {
			return fmt.Errorf("field %s differs after localization", name)
		}
	}
	return nil
}

func countAccesses(tr *sim.Trace, phase sim.Phase, space ir.AddressSpace) int {
	return len(tr.Filter(func(a sim.Access) bool {
		return a.Op == sim.OpLoad && a.Phase == phase && a.Space == space
	}))
}
