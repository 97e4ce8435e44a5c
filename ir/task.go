package ir

import (
	"fmt"
	"slices"
)

// TaskKind represents how an offloaded task iterates.
type TaskKind uint8

const (
	// TaskSerial runs its body once on a single worker.
	TaskSerial TaskKind = iota
	// TaskRangeFor iterates over an integer range.
	TaskRangeFor
	// TaskStructFor iterates over the active cells of a sparse structure.
	TaskStructFor
	// TaskMeshFor iterates over the elements of each mesh patch.
	TaskMeshFor
)

func (k TaskKind) String() string {
	switch k {
	case TaskSerial:
		return "serial"
	case TaskRangeFor:
		return "range_for"
	case TaskStructFor:
		return "struct_for"
	case TaskMeshFor:
		return "mesh_for"
	default:
		return "unknown"
	}
}

// Block is an ordered sequence of statements. A block exclusively owns
// the handles it lists.
type Block struct {
	Stmts []StmtHandle
}

// NewBlock returns a block owning stmts.
func NewBlock(stmts ...StmtHandle) *Block {
	return &Block{Stmts: stmts}
}

// Append appends stmts to the end of the block.
func (b *Block) Append(stmts ...StmtHandle) {
	b.Stmts = append(b.Stmts, stmts...)
}

// Len returns the number of statements in the block.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Stmts)
}

// BLSSlot records one mapping staged into block-local storage.
type BLSSlot struct {
	Element ElementType
	Conv    ConvType
	Offset  uint32 // byte offset of the first element
	Size    uint32 // bytes reserved
}

// End returns the first byte after the slot.
func (s BLSSlot) End() uint32 {
	return s.Offset + s.Size
}

// Task is one offloaded unit of parallel work.
type Task struct {
	Name string
	Kind TaskKind

	// BlockDim is the number of workers in a cooperative group.
	BlockDim uint32

	Mesh      *Mesh
	MajorType ElementType

	// Stmts is the statement arena. Erased statements keep their slot
	// with a nil Kind so handles stay stable.
	Stmts []Stmt

	MeshPrologue *Block
	BLSPrologue  *Block
	Body         *Block

	// TotalNumLocal and TotalOffsetLocal hold, per element type, the
	// statements computing the element count and the global base offset
	// of the patch processed by the group.
	TotalNumLocal    map[ElementType]StmtHandle
	TotalOffsetLocal map[ElementType]StmtHandle

	// BLSSize is the block-local storage requirement in bytes.
	BLSSize uint32
	// BLSSlots lists the mappings already staged into block-local storage.
	BLSSlots []BLSSlot
}

func (*Task) node() {}

// NewTask creates an empty task with an empty body.
func NewTask(name string, kind TaskKind, blockDim uint32) *Task {
	return &Task{
		Name:             name,
		Kind:             kind,
		BlockDim:         blockDim,
		MeshPrologue:     &Block{},
		Body:             &Block{},
		TotalNumLocal:    make(map[ElementType]StmtHandle),
		TotalOffsetLocal: make(map[ElementType]StmtHandle),
	}
}

// NewStmt allocates kind in the arena without placing it in a block.
func (t *Task) NewStmt(kind StmtKind) StmtHandle {
	h := StmtHandle(len(t.Stmts))
	t.Stmts = append(t.Stmts, Stmt{Kind: kind})
	return h
}

// Stmt returns the statement for h, or nil if h is out of range or erased.
func (t *Task) Stmt(h StmtHandle) *Stmt {
	if int(h) >= len(t.Stmts) || t.Stmts[h].Kind == nil {
		return nil
	}
	return &t.Stmts[h]
}

// KindOf returns the kind of h, or nil if h is out of range or erased.
func (t *Task) KindOf(h StmtHandle) StmtKind {
	if s := t.Stmt(h); s != nil {
		return s.Kind
	}
	return nil
}

// Live reports whether h refers to a statement that has not been erased.
func (t *Task) Live(h StmtHandle) bool {
	return t.Stmt(h) != nil
}

// Blocks returns the top-level blocks in execution order.
func (t *Task) Blocks() []*Block {
	blocks := make([]*Block, 0, 3)
	for _, b := range []*Block{t.MeshPrologue, t.BLSPrologue, t.Body} {
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Builder allocates statements into a task arena and records them in
// order. The recorded sequence is placed by the caller.
type Builder struct {
	task  *Task
	stmts []StmtHandle
}

// NewBuilder returns a builder allocating into t.
func (t *Task) NewBuilder() *Builder {
	return &Builder{task: t}
}

// Push allocates kind and appends it to the builder's sequence.
func (b *Builder) Push(kind StmtKind) StmtHandle {
	h := b.task.NewStmt(kind)
	b.stmts = append(b.stmts, h)
	return h
}

// Stmts returns the recorded sequence.
func (b *Builder) Stmts() []StmtHandle {
	return b.stmts
}

// Block returns the recorded sequence as a new block.
func (b *Builder) Block() *Block {
	return NewBlock(b.stmts...)
}

// locate finds the block owning h and its position.
func (t *Task) locate(h StmtHandle) (*Block, int, bool) {
	var (
		found *Block
		pos   int
	)
	t.walk(func(b *Block, i int, s StmtHandle) bool {
		if s == h {
			found, pos = b, i
			return false
		}
		return true
	})
	return found, pos, found != nil
}

// InsertBefore places seq immediately before h in h's owning block.
func (t *Task) InsertBefore(h StmtHandle, seq []StmtHandle) error {
	b, pos, ok := t.locate(h)
	if !ok {
		return fmt.Errorf("task %s: statement $%d is not in any block", t.Name, h)
	}
	b.Stmts = slices.Insert(b.Stmts, pos, seq...)
	return nil
}

// ReplaceUsesWith redirects every reference to old, including the
// task's count and offset metadata, to replacement.
func (t *Task) ReplaceUsesWith(old, replacement StmtHandle) {
	redirect := func(h StmtHandle) StmtHandle {
		if h == old {
			return replacement
		}
		return h
	}
	for i := range t.Stmts {
		if t.Stmts[i].Kind == nil || StmtHandle(i) == old {
			continue
		}
		t.Stmts[i].Kind = mapOperands(t.Stmts[i].Kind, redirect)
	}
	for elem, h := range t.TotalNumLocal {
		t.TotalNumLocal[elem] = redirect(h)
	}
	for elem, h := range t.TotalOffsetLocal {
		t.TotalOffsetLocal[elem] = redirect(h)
	}
}

// Erase removes h from its owning block and kills its arena slot.
// Statements nested in h are erased with it.
func (t *Task) Erase(h StmtHandle) error {
	b, pos, ok := t.locate(h)
	if !ok {
		return fmt.Errorf("task %s: statement $%d is not in any block", t.Name, h)
	}
	b.Stmts = slices.Delete(b.Stmts, pos, pos+1)
	t.kill(h)
	return nil
}

func (t *Task) kill(h StmtHandle) {
	for _, nested := range nestedBlocks(t.Stmts[h].Kind) {
		for _, s := range nested.Stmts {
			t.kill(s)
		}
	}
	t.Stmts[h] = Stmt{}
}

// ReplaceWith replaces old by seq: seq is inserted before old, every use
// of old is redirected to the last statement of seq, and old is erased.
func (t *Task) ReplaceWith(old StmtHandle, seq []StmtHandle) error {
	if len(seq) == 0 {
		return fmt.Errorf("task %s: empty replacement for $%d", t.Name, old)
	}
	if !t.Live(old) {
		return fmt.Errorf("task %s: statement $%d is not live", t.Name, old)
	}
	if err := t.InsertBefore(old, seq); err != nil {
		return err
	}
	t.ReplaceUsesWith(old, seq[len(seq)-1])
	return t.Erase(old)
}

// Uses returns the live statements that reference h, in arena order.
func (t *Task) Uses(h StmtHandle) []StmtHandle {
	var users []StmtHandle
	for i := range t.Stmts {
		if t.Stmts[i].Kind == nil {
			continue
		}
		if slices.Contains(Operands(t.Stmts[i].Kind), h) {
			users = append(users, StmtHandle(i))
		}
	}
	return users
}
