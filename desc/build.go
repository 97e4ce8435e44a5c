package desc

import (
	"fmt"
	"slices"

	"github.com/gogpu/meshc/ir"
)

// Program is a built description: the IR kernel plus the named objects
// it references.
type Program struct {
	Kernel *ir.Kernel
	Meshes map[string]*ir.Mesh
	Fields map[string]*ir.Field

	desc *Kernel
}

// Build lowers a description to IR.
func Build(k *Kernel) (*Program, error) {
	p := &Program{
		Kernel: &ir.Kernel{Name: k.Name},
		Meshes: make(map[string]*ir.Mesh),
		Fields: make(map[string]*ir.Field),
		desc:   k,
	}
	for _, f := range k.Fields {
		typ, err := ParseScalarType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if _, dup := p.Fields[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %s", f.Name)
		}
		p.Fields[f.Name] = &ir.Field{Name: f.Name, Type: typ}
	}
	for _, m := range k.Meshes {
		mesh, err := buildMesh(m)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", m.Name, err)
		}
		if _, dup := p.Meshes[m.Name]; dup {
			return nil, fmt.Errorf("duplicate mesh %s", m.Name)
		}
		p.Meshes[m.Name] = mesh
	}
	for _, td := range k.Tasks {
		t, err := p.buildTask(td)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", td.Name, err)
		}
		p.Kernel.Tasks = append(p.Kernel.Tasks, t)
	}
	return p, nil
}

// ParseScalarType parses "i32", "u32", "i64", "f32" or "bool".
func ParseScalarType(s string) (ir.ScalarType, error) {
	switch s {
	case "i32", "":
		return ir.I32, nil
	case "u32":
		return ir.U32, nil
	case "i64":
		return ir.I64, nil
	case "f32":
		return ir.F32, nil
	case "bool":
		return ir.Bool, nil
	}
	return ir.ScalarType{}, fmt.Errorf("unknown scalar type %q", s)
}

func parseTaskKind(s string) (ir.TaskKind, error) {
	switch s {
	case "serial":
		return ir.TaskSerial, nil
	case "range_for":
		return ir.TaskRangeFor, nil
	case "struct_for":
		return ir.TaskStructFor, nil
	case "mesh_for", "":
		return ir.TaskMeshFor, nil
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

func buildMesh(m Mesh) (*ir.Mesh, error) {
	mesh := &ir.Mesh{
		Name:               m.Name,
		L2G:                make(map[ir.ElementType]*ir.Field),
		L2R:                make(map[ir.ElementType]*ir.Field),
		PatchMaxElementNum: make(map[ir.ElementType]uint32),
		PatchOffset:        make(map[ir.ElementType]*ir.Field),
		PatchCount:         make(map[ir.ElementType]*ir.Field),
	}
	for name, e := range m.Elements {
		elem, err := ir.ParseElementType(name)
		if err != nil {
			return nil, err
		}
		if len(e.Counts) != 0 && len(e.Counts) != m.Patches {
			return nil, fmt.Errorf("%s: %d counts for %d patches", elem, len(e.Counts), m.Patches)
		}
		capacity := e.Capacity
		if capacity == 0 && len(e.Counts) > 0 {
			capacity = uint32(slices.Max(e.Counts))
		}
		mesh.PatchMaxElementNum[elem] = capacity

		for _, table := range e.Tables {
			conv, err := ir.ParseConvType(table)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elem, err)
			}
			field := &ir.Field{Name: fmt.Sprintf("%s.%s.%s", m.Name, elem, conv), Type: ir.I32}
			switch conv {
			case ir.L2G:
				mesh.L2G[elem] = field
			case ir.L2R:
				mesh.L2R[elem] = field
			default:
				return nil, fmt.Errorf("%s: meshes carry no %s table", elem, conv)
			}
		}
		mesh.PatchOffset[elem] = &ir.Field{Name: fmt.Sprintf("%s.%s.offset", m.Name, elem), Type: ir.I32}
		mesh.PatchCount[elem] = &ir.Field{Name: fmt.Sprintf("%s.%s.count", m.Name, elem), Type: ir.I32}
	}
	return mesh, nil
}

func (p *Program) buildTask(td Task) (*ir.Task, error) {
	kind, err := parseTaskKind(td.Kind)
	if err != nil {
		return nil, err
	}
	t := ir.NewTask(td.Name, kind, td.BlockDim)
	if td.Mesh != "" {
		mesh, ok := p.Meshes[td.Mesh]
		if !ok {
			return nil, fmt.Errorf("unknown mesh %s", td.Mesh)
		}
		t.Mesh = mesh
	}
	if td.Major != "" {
		if t.MajorType, err = ir.ParseElementType(td.Major); err != nil {
			return nil, err
		}
	}
	if err := p.buildMetadata(t, td.Metadata); err != nil {
		return nil, err
	}
	if err := p.buildBody(t, td.Body); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Program) buildMetadata(t *ir.Task, md map[string]Metadata) error {
	elems := make([]ir.ElementType, 0, len(md))
	byElem := make(map[ir.ElementType]Metadata, len(md))
	for name, m := range md {
		elem, err := ir.ParseElementType(name)
		if err != nil {
			return err
		}
		elems = append(elems, elem)
		byElem[elem] = m
	}
	slices.Sort(elems)

	b := t.NewBuilder()
	var patch *ir.StmtHandle
	for _, elem := range elems {
		m := byElem[elem]
		if !m.Patch {
			if m.Count == nil || m.Offset == nil {
				return fmt.Errorf("%s metadata needs count and offset, or patch", elem)
			}
			t.TotalNumLocal[elem] = b.Push(ir.Const{Value: ir.LiteralI32(*m.Count)})
			t.TotalOffsetLocal[elem] = b.Push(ir.Const{Value: ir.LiteralI32(*m.Offset)})
			continue
		}
		if t.Mesh == nil {
			return fmt.Errorf("%s patch metadata without mesh", elem)
		}
		if patch == nil {
			h := b.Push(ir.MeshPatchIndex{})
			patch = &h
		}
		load := func(f *ir.Field) ir.StmtHandle {
			ptr := b.Push(ir.GlobalPtr{Field: f, Indices: []ir.StmtHandle{*patch}})
			return b.Push(ir.GlobalLoad{Ptr: ptr})
		}
		count, okCount := t.Mesh.PatchCount[elem]
		offset, okOffset := t.Mesh.PatchOffset[elem]
		if !okCount || !okOffset {
			return fmt.Errorf("mesh %s has no patch tables for %s", t.Mesh.Name, elem)
		}
		t.TotalNumLocal[elem] = load(count)
		t.TotalOffsetLocal[elem] = load(offset)
	}
	t.MeshPrologue.Append(b.Stmts()...)
	return nil
}

func (p *Program) buildBody(t *ir.Task, accesses []Access) error {
	if len(accesses) == 0 {
		return nil
	}
	if t.Mesh == nil {
		return fmt.Errorf("body accesses without mesh")
	}
	b := t.NewBuilder()
	loop := b.Push(ir.LoopIndex{MeshIndexType: t.MajorType})
	for i, a := range accesses {
		conv, err := ir.ParseConvType(a.Conv)
		if err != nil {
			return fmt.Errorf("access %d: %w", i, err)
		}
		var idx ir.StmtHandle
		switch a.Index {
		case "loop", "":
			idx = loop
		case "relation":
			to, err := ir.ParseElementType(a.To)
			if err != nil {
				return fmt.Errorf("access %d: %w", i, err)
			}
			neighbor := b.Push(ir.Const{Value: ir.LiteralI32(a.Neighbor)})
			idx = b.Push(ir.MeshRelationAccess{Mesh: t.Mesh, MeshIdx: loop, ToType: to, Neighbor: neighbor})
		default:
			return fmt.Errorf("access %d: unknown index %q", i, a.Index)
		}

		value := b.Push(ir.MeshIndexConversion{Mesh: t.Mesh, ConvType: conv, Idx: idx})
		if a.Read != "" {
			f, ok := p.Fields[a.Read]
			if !ok {
				return fmt.Errorf("access %d: unknown field %s", i, a.Read)
			}
			ptr := b.Push(ir.GlobalPtr{Field: f, Indices: []ir.StmtHandle{value}})
			value = b.Push(ir.GlobalLoad{Ptr: ptr})
		}
		if a.Store != "" {
			f, ok := p.Fields[a.Store]
			if !ok {
				return fmt.Errorf("access %d: unknown field %s", i, a.Store)
			}
			dst := b.Push(ir.MeshIndexConversion{Mesh: t.Mesh, ConvType: ir.L2G, Idx: loop})
			ptr := b.Push(ir.GlobalPtr{Field: f, Indices: []ir.StmtHandle{dst}})
			b.Push(ir.GlobalStore{Ptr: ptr, Value: value})
		}
	}
	t.Body.Append(b.Stmts()...)
	return nil
}
