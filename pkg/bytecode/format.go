package bytecode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Text format: space-separated decimal integers
// ---------------------------------------------------------------------------

// WriteText writes code as decimal integers, each followed by a space.
func WriteText(w io.Writer, code []int) error {
	bw := bufio.NewWriter(w)
	for _, c := range code {
		bw.WriteString(strconv.Itoa(c))
		bw.WriteByte(' ')
	}
	return bw.Flush()
}

// ReadText reads whitespace-separated decimal integers.
func ReadText(r io.Reader) ([]int, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	var code []int
	for sc.Scan() {
		n, err := strconv.Atoi(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("bytecode: bad code cell %d: %w", len(code), err)
		}
		code = append(code, n)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Object format: CBOR with symbols
// ---------------------------------------------------------------------------

// ObjectVersion is the current object format version.
// Increment when making incompatible changes to the format.
const ObjectVersion uint16 = 1

// ObjectMagic identifies object files: "MCBC" (MicroC ByteCode).
var ObjectMagic = []byte{'M', 'C', 'B', 'C'}

// ErrNotObject is returned for data without the object magic.
var ErrNotObject = errors.New("bytecode: not an object file")

// Object is a compiled program with the metadata needed to disassemble and
// cache it.
type Object struct {
	Version     uint16         `cbor:"1,keyasint"`
	Code        []int          `cbor:"2,keyasint"`
	Symbols     map[string]int `cbor:"3,keyasint,omitempty"`
	GlobalCells int            `cbor:"4,keyasint"`
	SourceHash  []byte         `cbor:"5,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalObject serializes an Object: the magic followed by canonical CBOR.
func MarshalObject(o *Object) ([]byte, error) {
	if o.Version == 0 {
		o.Version = ObjectVersion
	}
	body, err := cborEncMode.Marshal(o)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), ObjectMagic...), body...), nil
}

// UnmarshalObject deserializes an Object written by MarshalObject.
func UnmarshalObject(data []byte) (*Object, error) {
	if !IsObject(data) {
		return nil, ErrNotObject
	}
	var o Object
	if err := cbor.Unmarshal(data[len(ObjectMagic):], &o); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal object: %w", err)
	}
	if o.Version != ObjectVersion {
		return nil, fmt.Errorf("bytecode: unsupported object version %d", o.Version)
	}
	return &o, nil
}

// IsObject reports whether data starts with the object magic.
func IsObject(data []byte) bool {
	return bytes.HasPrefix(data, ObjectMagic)
}

// Load reads code in either format.
func Load(data []byte) ([]int, error) {
	if IsObject(data) {
		o, err := UnmarshalObject(data)
		if err != nil {
			return nil, err
		}
		return o.Code, nil
	}
	return ReadText(bytes.NewReader(data))
}
