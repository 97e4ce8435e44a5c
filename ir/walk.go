package ir

// walk visits every placed statement of t in execution order, parents
// before their nested blocks. visit returns false to stop the walk.
func (t *Task) walk(visit func(b *Block, i int, h StmtHandle) bool) {
	for _, b := range t.Blocks() {
		if !t.walkBlock(b, visit) {
			return
		}
	}
}

func (t *Task) walkBlock(b *Block, visit func(b *Block, i int, h StmtHandle) bool) bool {
	if b == nil {
		return true
	}
	for i, h := range b.Stmts {
		if !visit(b, i, h) {
			return false
		}
		s := t.Stmt(h)
		if s == nil {
			continue
		}
		for _, nested := range nestedBlocks(s.Kind) {
			if !t.walkBlock(nested, visit) {
				return false
			}
		}
	}
	return true
}

// Gather returns, in pre-order, the statements placed under root
// (nested blocks included) for which pred returns true.
func (t *Task) Gather(root *Block, pred func(h StmtHandle, kind StmtKind) bool) []StmtHandle {
	var out []StmtHandle
	t.walkBlock(root, func(_ *Block, _ int, h StmtHandle) bool {
		if s := t.Stmt(h); s != nil && pred(h, s.Kind) {
			out = append(out, h)
		}
		return true
	})
	return out
}

// Placed returns every statement placed in a block of t, in execution order.
func (t *Task) Placed() []StmtHandle {
	var out []StmtHandle
	t.walk(func(_ *Block, _ int, h StmtHandle) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Tasks returns the tasks of root: every task of a kernel, or the task
// itself.
func Tasks(root Node) []*Task {
	switch r := root.(type) {
	case *Kernel:
		return r.Tasks
	case *Task:
		return []*Task{r}
	default:
		return nil
	}
}
