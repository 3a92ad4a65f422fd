package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Expressions
	TagConstant   byte = 0x01
	TagUnaryOp    byte = 0x02
	TagBinaryOp   byte = 0x03
	TagAddressOf  byte = 0x04
	TagAssignment byte = 0x05
	TagCall       byte = 0x06

	// Accesses
	TagVariable byte = 0x08
	TagDeref    byte = 0x09
	TagIndex    byte = 0x0A

	// Statements
	TagExprStmt byte = 0x10
	TagBlock    byte = 0x11
	TagIfElse   byte = 0x12
	TagWhile    byte = 0x13
	TagRead     byte = 0x14
	TagVarDecl  byte = 0x15

	// Declarations
	TagFuncDecl byte = 0x18
	TagProgram  byte = 0x19
	TagOptions  byte = 0x1A

	// Types
	TagPrimitiveType byte = 0x20
	TagPointerType   byte = 0x21
	TagArrayType     byte = 0x22
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagConstant, TagUnaryOp, TagBinaryOp, TagAddressOf, TagAssignment, TagCall,
	TagVariable, TagDeref, TagIndex,
	TagExprStmt, TagBlock, TagIfElse, TagWhile, TagRead, TagVarDecl,
	TagFuncDecl, TagProgram, TagOptions,
	TagPrimitiveType, TagPointerType, TagArrayType,
}
