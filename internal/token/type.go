package token

import "github.com/aoweichenn/cc11/internal/diag"

// TypeKind tags the literal datatypes the preprocessor distinguishes.
type TypeKind int

const (
	TyVoid TypeKind = iota
	TyInt
	TyFloat
	TyStr  // narrow string
	TyWStr // wide string
	TyArray
)

// Type describes a literal's datatype.
type Type struct {
	Kind     TypeKind
	Base     *Type // element type, array kind only
	ArrayLen int
	Size     int // total byte size
}

// Basic creates a non-array type of the given size.
func Basic(kind TypeKind, size int) *Type {
	return &Type{Kind: kind, Size: size}
}

// NewArray creates an array type. A nil base is a caller error and is
// rejected before any size computation.
func NewArray(base *Type, n int) (*Type, error) {
	if base == nil {
		return nil, diag.Newf(diag.InvalidDirective, "array base type cannot be nil")
	}
	return &Type{Kind: TyArray, Base: base, ArrayLen: n, Size: base.Size * n}, nil
}
