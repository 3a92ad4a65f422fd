// Package hash computes content hashes of MicroC programs. Two programs
// that differ only in layout, comments or source positions hash the same.
package hash

import (
	"crypto/sha256"

	"github.com/chazu/microc/compiler"
)

// HashProgram computes the SHA-256 content hash of a program together with
// the options that affect its compilation.
func HashProgram(p *compiler.Program, opts compiler.Options) [32]byte {
	return sha256.Sum256(Serialize(p, opts))
}
