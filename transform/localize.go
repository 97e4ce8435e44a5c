package transform

import (
	"fmt"
	"math"

	"github.com/gogpu/meshc/ir"
)

// MakeMeshIndexMappingLocal stages the selected index-conversion tables
// of every mesh-for task under root into block-local storage and
// redirects the task bodies to read them from there. root is a
// *ir.Kernel or a single *ir.Task. The whole tree is type checked
// afterwards, since synthesized statements carry no types.
//
// The pass runs after task splitting, which provides block dims and the
// per-element count and offset metadata, and before access lowering,
// which would otherwise remove the index conversions rewritten here.
//
// The pass is idempotent: mappings already recorded in a task's
// BLSSlots are not localized again.
//
// The generated code per mapping is:
//
//	for (int i = threadIdx.x; i < total_num; i += blockDim.x) {
//	    mapping_shared[i] = mapping[i + total_offset];
//	}
func MakeMeshIndexMappingLocal(root ir.Node, opts Options) error {
	switch r := root.(type) {
	case *ir.Kernel:
		for i, t := range r.Tasks {
			if t == nil {
				return NewError(ErrInvalidRoot, "", fmt.Sprintf("kernel %s: task %d is nil", r.Name, i))
			}
			if err := LocalizeTask(t, opts); err != nil {
				return fmt.Errorf("kernel %s: %w", r.Name, err)
			}
		}
	case *ir.Task:
		if err := LocalizeTask(r, opts); err != nil {
			return err
		}
	default:
		return NewError(ErrInvalidRoot, "", fmt.Sprintf("unsupported root %T", root))
	}

	if err := ir.TypeCheck(root); err != nil {
		return fmt.Errorf("type check after localization: %w", err)
	}
	return nil
}

// LocalizeTask localizes the selected mappings of one task. Tasks that
// are not mesh-for are left untouched. On return t.BLSSize holds the
// block-local storage requirement.
func LocalizeTask(t *ir.Task, opts Options) error {
	if t == nil {
		return NewError(ErrInvalidTask, "", "nil task")
	}
	if t.Kind != ir.TaskMeshFor {
		return nil
	}
	if t.Mesh == nil {
		return NewError(ErrInvalidTask, t.Name, "mesh-for task has no mesh")
	}
	if t.BlockDim == 0 {
		return NewError(ErrInvalidTask, t.Name, "mesh-for task has zero block dim")
	}
	// The copy loop strides by an i32 constant.
	if t.BlockDim > math.MaxInt32 {
		return NewError(ErrInvalidTask, t.Name, fmt.Sprintf("block dim %d does not fit in i32", t.BlockDim))
	}

	log := Logger().With("task", t.Name)
	l := newLayout(t)
	for _, m := range selectMappings(opts.selector(), t) {
		if localized(t, m) {
			log.Debug("mapping already localized", "mapping", m)
			continue
		}
		// No attribute of this element type is accessed, so there is
		// nothing to gain from localizing the mapping.
		offset, ok := t.TotalOffsetLocal[m.Element]
		if !ok {
			log.Debug("mapping unused", "mapping", m)
			continue
		}
		count, ok := t.TotalNumLocal[m.Element]
		if !ok {
			return NewError(ErrInvalidTask, t.Name, fmt.Sprintf("%s has an offset but no count", m.Element))
		}
		if err := expectIndex(t, "count", count); err != nil {
			return err
		}
		if err := expectIndex(t, "offset", offset); err != nil {
			return err
		}

		table, err := t.Mesh.Table(m.Element, m.Conv)
		if err != nil {
			return NewError(ErrMissingTable, t.Name, err.Error())
		}
		capacity, ok := t.Mesh.PatchCapacity(m.Element)
		if !ok {
			return NewError(ErrMissingCapacity, t.Name,
				fmt.Sprintf("mesh %s has no patch capacity for %s", t.Mesh.Name, m.Element))
		}
		// Matching fails on unsupported index sources, so it runs before
		// anything is emitted.
		matches, err := matchingConversions(t, m)
		if err != nil {
			return err
		}
		slot, err := l.allocate(m, table.Type.Size(), capacity)
		if err != nil {
			return NewError(ErrInvalidTask, t.Name, err.Error())
		}

		emitPrologue(t, table, slot, count, offset)
		if err := rewriteConversions(t, m, matches, table, slot); err != nil {
			return err
		}
		t.BLSSlots = append(t.BLSSlots, slot)

		log.Debug("localized mapping",
			"mapping", m, "offset", slot.Offset, "bytes", slot.Size, "rewritten", len(matches))
	}

	t.BLSSize = l.size()
	checkLimits(t, opts.Limits)
	return nil
}

func localized(t *ir.Task, m Mapping) bool {
	for _, slot := range t.BLSSlots {
		if slot.Element == m.Element && slot.Conv == m.Conv {
			return true
		}
	}
	return false
}

// expectIndex checks that a metadata statement is an i32, the type of
// the synthesized loop counter.
func expectIndex(t *ir.Task, what string, h ir.StmtHandle) error {
	typ, err := ir.ResolveStmtType(t, h)
	if err != nil {
		return NewError(ErrInvalidTask, t.Name, fmt.Sprintf("%s metadata: %v", what, err))
	}
	if s, ok := typ.(ir.ScalarType); !ok || s != ir.I32 {
		return NewError(ErrInvalidTask, t.Name,
			fmt.Sprintf("%s metadata $%d has type %s, want i32", what, h, ir.TypeString(typ)))
	}
	return nil
}
