package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Task string
	Stmt *StmtHandle
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Task != "" {
		if e.Stmt != nil {
			return fmt.Sprintf("in task %s, statement $%d: %s", e.Task, *e.Stmt, e.Message)
		}
		return fmt.Sprintf("in task %s: %s", e.Task, e.Message)
	}
	return e.Message
}

// Validator validates IR trees.
type Validator struct {
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	task      *Task
	loopDepth int
	defined   map[StmtHandle]bool
	placed    map[StmtHandle]int
}

// Validate checks the IR tree for correctness.
// Returns validation errors if any, or nil if the tree is valid.
func Validate(root Node) ([]ValidationError, error) {
	if root == nil {
		return nil, fmt.Errorf("root is nil")
	}
	tasks := Tasks(root)
	if tasks == nil {
		return nil, fmt.Errorf("unsupported root %T", root)
	}

	v := &Validator{
		errors: make([]ValidationError, 0),
	}
	for i, t := range tasks {
		if t == nil {
			v.addError(fmt.Sprintf("task %d is nil", i))
			continue
		}
		v.ValidateTask(t)
	}

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateTask validates a single task.
func (v *Validator) ValidateTask(t *Task) {
	v.context = validationContext{
		task:    t,
		defined: make(map[StmtHandle]bool),
		placed:  make(map[StmtHandle]int),
	}

	if t.Body == nil {
		v.addErrorInTask("task has no body")
	}
	if t.Kind == TaskMeshFor {
		if t.Mesh == nil {
			v.addErrorInTask("mesh-for task has no mesh")
		}
		if t.BlockDim == 0 {
			v.addErrorInTask("mesh-for task has zero block dim")
		}
	}

	// Top-level blocks run in sequence and share one scope.
	for _, b := range t.Blocks() {
		v.validateStmts(b)
	}

	// Every live statement is owned by exactly one block.
	for i := range t.Stmts {
		h := StmtHandle(i)
		if t.Stmts[i].Kind == nil {
			continue
		}
		switch n := v.context.placed[h]; {
		case n == 0:
			v.addErrorInStmt(h, "statement is not owned by any block")
		case n > 1:
			v.addErrorInStmt(h, fmt.Sprintf("statement is owned %d times", n))
		}
	}

	v.validateMetadata("count", t.TotalNumLocal)
	v.validateMetadata("offset", t.TotalOffsetLocal)
	v.validateSlots()
}

// validateBlock checks a block in execution order. Definitions made in
// the block are not visible after it.
func (v *Validator) validateBlock(b *Block) {
	for _, h := range v.validateStmts(b) {
		delete(v.context.defined, h)
	}
}

// validateStmts checks the statements of b and returns those it defined.
func (v *Validator) validateStmts(b *Block) []StmtHandle {
	t := v.context.task
	var local []StmtHandle
	for _, h := range b.Stmts {
		v.context.placed[h]++
		s := t.Stmt(h)
		if s == nil {
			v.addErrorInStmt(h, "block references an erased statement")
			continue
		}
		v.validateStmt(h, s.Kind)
		v.context.defined[h] = true
		local = append(local, h)
	}
	return local
}

func (v *Validator) validateStmt(h StmtHandle, kind StmtKind) {
	t := v.context.task
	for _, op := range Operands(kind) {
		switch {
		case !t.Live(op):
			v.addErrorInStmt(h, fmt.Sprintf("operand $%d does not exist", op))
		case !v.context.defined[op]:
			v.addErrorInStmt(h, fmt.Sprintf("operand $%d is used before it is defined", op))
		}
	}

	switch k := kind.(type) {
	case WhileControl:
		if v.context.loopDepth == 0 {
			v.addErrorInStmt(h, "while control outside of a loop")
		}
	case While:
		if k.Body == nil {
			v.addErrorInStmt(h, "while has no body")
			return
		}
		v.context.loopDepth++
		v.validateBlock(k.Body)
		v.context.loopDepth--
	case If:
		if k.Accept == nil {
			v.addErrorInStmt(h, "if has no accept block")
			return
		}
		v.validateBlock(k.Accept)
		if k.Reject != nil {
			v.validateBlock(k.Reject)
		}
	case MeshIndexConversion:
		if k.Mesh == nil {
			v.addErrorInStmt(h, "index conversion has no mesh")
		}
	case MeshRelationAccess:
		if k.Mesh == nil {
			v.addErrorInStmt(h, "relation access has no mesh")
		}
	case GlobalPtr:
		if k.Field == nil {
			v.addErrorInStmt(h, "global pointer has no field")
		}
	}
}

// validateMetadata checks that per-element metadata statements are
// defined at the top level of the mesh prologue.
func (v *Validator) validateMetadata(what string, m map[ElementType]StmtHandle) {
	t := v.context.task
	for elem, h := range m {
		if !t.Live(h) {
			v.addErrorInTask(fmt.Sprintf("%s %s metadata $%d does not exist", elem, what, h))
			continue
		}
		if t.MeshPrologue == nil || !containsHandle(t.MeshPrologue.Stmts, h) {
			v.addErrorInTask(fmt.Sprintf("%s %s metadata $%d is not defined in the mesh prologue", elem, what, h))
		}
	}
}

func (v *Validator) validateSlots() {
	t := v.context.task
	var end uint32
	for _, slot := range t.BLSSlots {
		if slot.Offset < end {
			v.addErrorInTask(fmt.Sprintf("block-local slot %s/%s at %d overlaps previous slot ending at %d",
				slot.Element, slot.Conv, slot.Offset, end))
		}
		end = slot.End()
	}
	if end > t.BLSSize {
		v.addErrorInTask(fmt.Sprintf("block-local slots end at %d, beyond size %d", end, t.BLSSize))
	}
}

func containsHandle(hs []StmtHandle, h StmtHandle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{Message: msg})
}

func (v *Validator) addErrorInTask(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message: msg,
		Task:    v.context.task.Name,
	})
}

func (v *Validator) addErrorInStmt(h StmtHandle, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message: msg,
		Task:    v.context.task.Name,
		Stmt:    &h,
	})
}
