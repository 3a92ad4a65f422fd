package hash

import (
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/chazu/microc/compiler"
)

func mustParse(t *testing.T, src string) *compiler.Program {
	t.Helper()
	p, err := compiler.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestTagsAreUnique(t *testing.T) {
	seen := make(map[byte]bool)
	for _, tag := range allTags {
		if seen[tag] {
			t.Errorf("duplicate tag 0x%02X", tag)
		}
		seen[tag] = true
	}
}

func TestHashIgnoresLayout(t *testing.T) {
	a := mustParse(t, "int g; void main() { g = 1 + 2; write g; }")
	b := mustParse(t, heredoc.Doc(`
		// same program, different layout
		int g;

		void main() {
		  g = 1+2;   /* sum */
		  write g;
		}
	`))

	if HashProgram(a, compiler.Options{}) != HashProgram(b, compiler.Options{}) {
		t.Error("layout changed the hash")
	}
}

func TestHashDistinguishesPrograms(t *testing.T) {
	base := HashProgram(mustParse(t, "void main() { write 10 - 3; }"), compiler.Options{})

	tests := []struct {
		name string
		src  string
	}{
		{"operands swapped", "void main() { write 3 - 10; }"},
		{"operator changed", "void main() { write 10 + 3; }"},
		{"extra statement", "void main() { write 10 - 3; ; }"},
		{"renamed function", "void main() { f(); } void f() { write 10 - 3; }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if HashProgram(mustParse(t, tt.src), compiler.Options{}) == base {
				t.Errorf("%q hashes like the base program", tt.src)
			}
		})
	}
}

func TestHashIncludesOptions(t *testing.T) {
	p := mustParse(t, "void main() { }")
	if HashProgram(p, compiler.Options{}) == HashProgram(p, compiler.Options{StrictScopes: true}) {
		t.Error("options did not change the hash")
	}
}

func TestSerializeVersionPrefix(t *testing.T) {
	data := Serialize(compiler.NewProgram(), compiler.Options{})
	if len(data) == 0 || data[0] != HashVersion {
		t.Fatalf("serialization must start with version byte, got %v", data)
	}
}
