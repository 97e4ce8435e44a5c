package desc

import (
	"fmt"

	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/sim"
)

// SyntheticData fills the fields of mesh with deterministic contents for
// simulation: patch offsets are prefix sums of the counts, l2g reverses
// the global numbering, l2r rotates it by one, attribute field i holds
// 3*i, and relation k of a local element idx is (idx+k+1) mod count.
func (p *Program) SyntheticData(mesh string) (*sim.Data, error) {
	var md *Mesh
	for i := range p.desc.Meshes {
		if p.desc.Meshes[i].Name == mesh {
			md = &p.desc.Meshes[i]
		}
	}
	m, ok := p.Meshes[mesh]
	if md == nil || !ok {
		return nil, fmt.Errorf("unknown mesh %s", mesh)
	}

	data := sim.NewData(md.Patches)
	counts := make(map[ir.ElementType][]int)
	for name, e := range md.Elements {
		elem, err := ir.ParseElementType(name)
		if err != nil {
			return nil, err
		}
		if len(e.Counts) != md.Patches {
			return nil, fmt.Errorf("mesh %s: %s needs %d counts to simulate", mesh, elem, md.Patches)
		}
		counts[elem] = e.Counts

		offsets := make([]int64, md.Patches)
		sizes := make([]int64, md.Patches)
		total := 0
		for i, n := range e.Counts {
			offsets[i] = int64(total)
			sizes[i] = int64(n)
			total += n
		}
		data.Fields[m.PatchOffset[elem]] = offsets
		data.Fields[m.PatchCount[elem]] = sizes

		if f, ok := m.L2G[elem]; ok {
			table := make([]int64, total)
			for i := range table {
				table[i] = int64(total - 1 - i)
			}
			data.Fields[f] = table
		}
		if f, ok := m.L2R[elem]; ok {
			table := make([]int64, total)
			for i := range table {
				table[i] = int64((i + 1) % total)
			}
			data.Fields[f] = table
		}

		owned := e.Owned
		if owned == nil {
			owned = e.Counts
		}
		data.Owned[elem] = owned
	}

	for _, fd := range p.desc.Fields {
		values := make([]int64, fd.Size)
		for i := range values {
			values[i] = int64(3 * i)
		}
		data.Fields[p.Fields[fd.Name]] = values
	}

	data.Relation = func(patch int, _ ir.ElementType, idx int64, to ir.ElementType, k int64) (int64, error) {
		c, ok := counts[to]
		if !ok || c[patch] == 0 {
			return 0, fmt.Errorf("no %s in patch %d", to, patch)
		}
		return (idx + k + 1) % int64(c[patch]), nil
	}
	return data, nil
}
