// Package desc decodes JSON kernel descriptions into split IR kernels.
//
// A description lists global fields, meshes and already-split tasks:
//
//	{
//	  "name": "laplacian",
//	  "fields": [{"name": "x", "type": "i32", "size": 4096}],
//	  "meshes": [{
//	    "name": "bunny",
//	    "patches": 2,
//	    "elements": {"verts": {"capacity": 64, "tables": ["l2g"], "counts": [57, 60]}}
//	  }],
//	  "tasks": [{
//	    "name": "t0", "kind": "mesh_for", "block_dim": 32,
//	    "mesh": "bunny", "major": "verts",
//	    "metadata": {"verts": {"patch": true}},
//	    "body": [{"index": "loop", "conv": "l2g", "read": "x", "store": "y"}]
//	  }]
//	}
package desc

import (
	"encoding/json"
	"fmt"
	"io"
)

// Kernel is the top-level description.
type Kernel struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
	Meshes []Mesh  `json:"meshes"`
	Tasks  []Task  `json:"tasks"`
}

// Field describes a global attribute field.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// Mesh describes mesh metadata.
type Mesh struct {
	Name     string             `json:"name"`
	Patches  int                `json:"patches"`
	Elements map[string]Element `json:"elements"`
}

// Element describes one element type of a mesh.
type Element struct {
	// Capacity is the maximum element count of any patch. Defaults to the
	// largest entry of Counts.
	Capacity uint32 `json:"capacity"`

	// Tables lists the conversion tables present ("l2g", "l2r").
	Tables []string `json:"tables"`

	// Counts holds the element count of each patch, ghosts included.
	Counts []int `json:"counts"`

	// Owned holds the number of elements each patch iterates over.
	// Defaults to Counts.
	Owned []int `json:"owned"`
}

// Task describes one offloaded task.
type Task struct {
	Name     string              `json:"name"`
	Kind     string              `json:"kind"`
	BlockDim uint32              `json:"block_dim"`
	Mesh     string              `json:"mesh"`
	Major    string              `json:"major"`
	Metadata map[string]Metadata `json:"metadata"`
	Body     []Access            `json:"body"`
}

// Metadata gives the per-element count and offset of a task, either as
// constants or loaded from the mesh's patch tables.
type Metadata struct {
	Patch  bool   `json:"patch"`
	Count  *int32 `json:"count"`
	Offset *int32 `json:"offset"`
}

// Access is one index conversion in a task body. The converted index
// optionally addresses a read of Read; the result (read value or index)
// is optionally stored into Store at the global index of the loop element.
type Access struct {
	Index    string `json:"index"` // "loop" or "relation"
	To       string `json:"to"`
	Neighbor int32  `json:"neighbor"`
	Conv     string `json:"conv"`
	Read     string `json:"read"`
	Store    string `json:"store"`
}

// Parse decodes a description from r.
func Parse(r io.Reader) (*Kernel, error) {
	var k Kernel
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&k); err != nil {
		return nil, fmt.Errorf("decode kernel description: %w", err)
	}
	return &k, nil
}

// Decode parses a description from r and builds its IR.
func Decode(r io.Reader) (*Program, error) {
	k, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return Build(k)
}
