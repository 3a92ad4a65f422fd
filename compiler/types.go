package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Type is a MicroC value type. The set of implementations is closed:
// *PrimitiveType, *PointerType and *ArrayType.
type Type interface {
	// Size is the number of store cells a value of this type occupies.
	Size() int
	String() string
	typ() // marker method
}

// PrimitiveType is one of the interned primitives below.
type PrimitiveType struct {
	Name string
}

// PointerType is a pointer to Item.
type PointerType struct {
	Item Type
}

// ArrayType is an array of Elem. Sized arrays reserve Size elements plus one
// cell holding the base address; unsized arrays (parameters) are a single
// base-address cell.
type ArrayType struct {
	Elem  Type
	Len   int
	Sized bool
}

// Interned primitive types.
var (
	IntType   = &PrimitiveType{Name: "int"}
	BoolType  = &PrimitiveType{Name: "bool"}
	VoidType  = &PrimitiveType{Name: "void"}
	ErrorType = &PrimitiveType{Name: "*ERROR*"}
)

// PointerTo returns the type "pointer to t".
func PointerTo(t Type) *PointerType { return &PointerType{Item: t} }

// ArrayOf returns a sized array type of n elements.
func ArrayOf(t Type, n int) *ArrayType { return &ArrayType{Elem: t, Len: n, Sized: true} }

// UnsizedArrayOf returns an array type with no size, as used for parameters.
func UnsizedArrayOf(t Type) *ArrayType { return &ArrayType{Elem: t} }

func (t *PrimitiveType) Size() int      { return 1 }
func (t *PrimitiveType) String() string { return t.Name }
func (t *PrimitiveType) typ()           {}

func (t *PointerType) Size() int      { return 1 }
func (t *PointerType) String() string { return "pointer to " + t.Item.String() }
func (t *PointerType) typ()           {}

func (t *ArrayType) Size() int {
	if t.Sized {
		return t.Len + 1
	}
	return 1
}

func (t *ArrayType) String() string {
	if t.Sized {
		return fmt.Sprintf("array %d of %s", t.Len, t.Elem)
	}
	return "array of " + t.Elem.String()
}

func (t *ArrayType) typ() {}

// Equal reports whether a and b are structurally the same type. Array sizes
// do not take part in the comparison.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case *PrimitiveType:
		b, ok := b.(*PrimitiveType)
		return ok && a.Name == b.Name
	case *PointerType:
		b, ok := b.(*PointerType)
		return ok && Equal(a.Item, b.Item)
	case *ArrayType:
		b, ok := b.(*ArrayType)
		return ok && Equal(a.Elem, b.Elem)
	}
	return false
}

// elementType returns the element type reached by indexing t, or nil if t
// cannot be indexed.
func elementType(t Type) Type {
	switch t := t.(type) {
	case *ArrayType:
		return t.Elem
	case *PointerType:
		return t.Item
	}
	return nil
}
