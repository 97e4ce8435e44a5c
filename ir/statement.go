package ir

// Stmt is a statement in a task arena. Every statement may produce a
// value; other statements reference it by handle.
type Stmt struct {
	Kind StmtKind

	// Type is filled in by TypeCheck. Synthesized statements start nil.
	Type TypeInner
}

// StmtKind represents the different kinds of statements.
type StmtKind interface {
	stmtKind()
}

// Const produces a literal value.
type Const struct {
	Value LiteralValue
}

func (Const) stmtKind() {}

// LiteralValue represents the value of a literal.
type LiteralValue interface {
	literalValue()
}

// LiteralI32 represents a 32-bit signed integer literal.
type LiteralI32 int32

func (LiteralI32) literalValue() {}

// LiteralU32 represents a 32-bit unsigned integer literal.
type LiteralU32 uint32

func (LiteralU32) literalValue() {}

// LiteralF32 represents a 32-bit float literal.
type LiteralF32 float32

func (LiteralF32) literalValue() {}

// LiteralBool represents a boolean literal.
type LiteralBool bool

func (LiteralBool) literalValue() {}

// LoopLinearIndex is the worker's linear position within its group.
type LoopLinearIndex struct{}

func (LoopLinearIndex) stmtKind() {}

// LoopIndex is the loop position marker of a task body. For mesh-for
// tasks it is a patch-local index of MeshIndexType.
type LoopIndex struct {
	Index         int
	MeshIndexType ElementType
}

func (LoopIndex) stmtKind() {}

// MeshPatchIndex is the index of the patch processed by the group.
type MeshPatchIndex struct{}

func (MeshPatchIndex) stmtKind() {}

// MeshRelationAccess reads the Neighbor-th element of type ToType related
// to the local element MeshIdx. The result is a patch-local index.
type MeshRelationAccess struct {
	Mesh     *Mesh
	MeshIdx  StmtHandle
	ToType   ElementType
	Neighbor StmtHandle
}

func (MeshRelationAccess) stmtKind() {}

// MeshIndexSource is implemented by the statements whose value is a
// patch-local mesh index of a known element type. The set is closed.
type MeshIndexSource interface {
	StmtKind
	SourceElementType() ElementType
	meshIndexSource()
}

// SourceElementType returns the element type of the loop index.
func (s LoopIndex) SourceElementType() ElementType { return s.MeshIndexType }

// SourceElementType returns the element type reached by the relation.
func (s MeshRelationAccess) SourceElementType() ElementType { return s.ToType }

func (LoopIndex) meshIndexSource()          {}
func (MeshRelationAccess) meshIndexSource() {}

// MeshIndexConversion converts the index Idx using the mesh table
// selected by ConvType and Idx's element type.
type MeshIndexConversion struct {
	Mesh     *Mesh
	ConvType ConvType
	Idx      StmtHandle
}

func (MeshIndexConversion) stmtKind() {}

// Alloca creates a worker-local mutable variable.
type Alloca struct {
	Type ScalarType
}

func (Alloca) stmtKind() {}

// LocalLoad reads a variable created by Alloca.
type LocalLoad struct {
	Ptr StmtHandle
}

func (LocalLoad) stmtKind() {}

// LocalStore writes a variable created by Alloca.
type LocalStore struct {
	Ptr   StmtHandle
	Value StmtHandle
}

func (LocalStore) stmtKind() {}

// BinaryOp applies a binary operator.
type BinaryOp struct {
	Op    BinaryOperator
	Left  StmtHandle
	Right StmtHandle
}

func (BinaryOp) stmtKind() {}

// BinaryOperator represents binary operations.
type BinaryOperator uint8

const (
	BinaryAdd BinaryOperator = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryCmpLT
	BinaryCmpLE
	BinaryCmpEQ
	BinaryCmpNE
)

// IsComparison reports whether the operator produces a bool.
func (op BinaryOperator) IsComparison() bool {
	return op >= BinaryCmpLT
}

func (op BinaryOperator) String() string {
	switch op {
	case BinaryAdd:
		return "add"
	case BinarySub:
		return "sub"
	case BinaryMul:
		return "mul"
	case BinaryDiv:
		return "div"
	case BinaryMod:
		return "mod"
	case BinaryCmpLT:
		return "cmp_lt"
	case BinaryCmpLE:
		return "cmp_le"
	case BinaryCmpEQ:
		return "cmp_eq"
	case BinaryCmpNE:
		return "cmp_ne"
	default:
		return "unknown"
	}
}

// WhileControl exits the innermost While when Cond is false.
type WhileControl struct {
	Cond StmtHandle
}

func (WhileControl) stmtKind() {}

// While executes Body until a WhileControl in it exits the loop.
type While struct {
	Body *Block
}

func (While) stmtKind() {}

// If executes Accept when Cond is true and Reject otherwise.
// Reject may be nil.
type If struct {
	Cond   StmtHandle
	Accept *Block
	Reject *Block
}

func (If) stmtKind() {}

// BlockLocalPtr addresses block-local storage at a byte offset.
type BlockLocalPtr struct {
	Offset   StmtHandle
	ElemType ScalarType
}

func (BlockLocalPtr) stmtKind() {}

// GlobalPtr addresses a global field element.
type GlobalPtr struct {
	Field   *Field
	Indices []StmtHandle
}

func (GlobalPtr) stmtKind() {}

// GlobalLoad reads through a storage or block-local pointer.
type GlobalLoad struct {
	Ptr StmtHandle
}

func (GlobalLoad) stmtKind() {}

// GlobalStore writes through a storage or block-local pointer.
type GlobalStore struct {
	Ptr   StmtHandle
	Value StmtHandle
}

func (GlobalStore) stmtKind() {}

// Operands returns the statements referenced by kind, in operand order.
// Nested blocks are not operands.
func Operands(kind StmtKind) []StmtHandle {
	switch k := kind.(type) {
	case MeshRelationAccess:
		return []StmtHandle{k.MeshIdx, k.Neighbor}
	case MeshIndexConversion:
		return []StmtHandle{k.Idx}
	case LocalLoad:
		return []StmtHandle{k.Ptr}
	case LocalStore:
		return []StmtHandle{k.Ptr, k.Value}
	case BinaryOp:
		return []StmtHandle{k.Left, k.Right}
	case WhileControl:
		return []StmtHandle{k.Cond}
	case If:
		return []StmtHandle{k.Cond}
	case BlockLocalPtr:
		return []StmtHandle{k.Offset}
	case GlobalPtr:
		return append([]StmtHandle(nil), k.Indices...)
	case GlobalLoad:
		return []StmtHandle{k.Ptr}
	case GlobalStore:
		return []StmtHandle{k.Ptr, k.Value}
	default:
		return nil
	}
}

// mapOperands returns a copy of kind with every operand passed through f.
func mapOperands(kind StmtKind, f func(StmtHandle) StmtHandle) StmtKind {
	switch k := kind.(type) {
	case MeshRelationAccess:
		k.MeshIdx, k.Neighbor = f(k.MeshIdx), f(k.Neighbor)
		return k
	case MeshIndexConversion:
		k.Idx = f(k.Idx)
		return k
	case LocalLoad:
		k.Ptr = f(k.Ptr)
		return k
	case LocalStore:
		k.Ptr, k.Value = f(k.Ptr), f(k.Value)
		return k
	case BinaryOp:
		k.Left, k.Right = f(k.Left), f(k.Right)
		return k
	case WhileControl:
		k.Cond = f(k.Cond)
		return k
	case If:
		k.Cond = f(k.Cond)
		return k
	case BlockLocalPtr:
		k.Offset = f(k.Offset)
		return k
	case GlobalPtr:
		indices := make([]StmtHandle, len(k.Indices))
		for i, idx := range k.Indices {
			indices[i] = f(idx)
		}
		k.Indices = indices
		return k
	case GlobalLoad:
		k.Ptr = f(k.Ptr)
		return k
	case GlobalStore:
		k.Ptr, k.Value = f(k.Ptr), f(k.Value)
		return k
	default:
		return kind
	}
}

// nestedBlocks returns the blocks owned by kind.
func nestedBlocks(kind StmtKind) []*Block {
	switch k := kind.(type) {
	case While:
		return []*Block{k.Body}
	case If:
		if k.Reject == nil {
			return []*Block{k.Accept}
		}
		return []*Block{k.Accept, k.Reject}
	default:
		return nil
	}
}
