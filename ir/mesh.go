package ir

import "fmt"

// ElementType identifies a kind of mesh element.
type ElementType uint8

const (
	Vertex ElementType = iota
	Edge
	Face
	Cell
)

func (e ElementType) String() string {
	switch e {
	case Vertex:
		return "verts"
	case Edge:
		return "edges"
	case Face:
		return "faces"
	case Cell:
		return "cells"
	default:
		return fmt.Sprintf("element(%d)", uint8(e))
	}
}

// ParseElementType parses the names produced by ElementType.String.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "verts", "vertex":
		return Vertex, nil
	case "edges", "edge":
		return Edge, nil
	case "faces", "face":
		return Face, nil
	case "cells", "cell":
		return Cell, nil
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// ConvType is the direction of an index translation.
type ConvType uint8

const (
	// L2G converts a patch-local index to the global numbering.
	L2G ConvType = iota
	// L2R converts a patch-local index to the reordered numbering.
	L2R
	// G2R converts a global index to the reordered numbering.
	G2R
)

func (c ConvType) String() string {
	switch c {
	case L2G:
		return "l2g"
	case L2R:
		return "l2r"
	case G2R:
		return "g2r"
	default:
		return fmt.Sprintf("conv(%d)", uint8(c))
	}
}

// ParseConvType parses the names produced by ConvType.String.
func ParseConvType(s string) (ConvType, error) {
	switch s {
	case "l2g":
		return L2G, nil
	case "l2r":
		return L2R, nil
	case "g2r":
		return G2R, nil
	}
	return 0, fmt.Errorf("unknown conversion type %q", s)
}

// Field is a global storage location holding one scalar per index.
type Field struct {
	Name string
	Type ScalarType
}

// Mesh is read-only mesh metadata owned outside the compiler passes.
type Mesh struct {
	Name string

	// L2G and L2R hold the index-conversion tables per element type.
	L2G map[ElementType]*Field
	L2R map[ElementType]*Field

	// PatchMaxElementNum is the largest element count of any patch, per
	// element type. Block-local buffers are sized for this worst case.
	PatchMaxElementNum map[ElementType]uint32

	// PatchOffset and PatchCount hold per-patch base offsets and element
	// counts, indexed by patch. Task splitting loads from them in the
	// mesh prologue.
	PatchOffset map[ElementType]*Field
	PatchCount  map[ElementType]*Field
}

// Table returns the conversion table for elem and conv.
func (m *Mesh) Table(elem ElementType, conv ConvType) (*Field, error) {
	var tables map[ElementType]*Field
	switch conv {
	case L2G:
		tables = m.L2G
	case L2R:
		tables = m.L2R
	default:
		return nil, fmt.Errorf("mesh %s: no table for conversion %s", m.Name, conv)
	}
	f, ok := tables[elem]
	if !ok || f == nil {
		return nil, fmt.Errorf("mesh %s: no %s table for %s", m.Name, conv, elem)
	}
	return f, nil
}

// PatchCapacity returns the maximum per-patch element count for elem.
func (m *Mesh) PatchCapacity(elem ElementType) (uint32, bool) {
	n, ok := m.PatchMaxElementNum[elem]
	return n, ok
}
