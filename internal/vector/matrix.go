// Package vector holds the row-major float32 embedding matrix and its byte
// encoding.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hyperengineering/recollect/internal/apperr"
)

// Float32Size is the encoded width of one element.
const Float32Size = 4

// Shape is the (rows, cols) size of a matrix. It encodes as [N, D].
type Shape [2]int

// Rows returns N.
func (s Shape) Rows() int { return s[0] }

// Cols returns D.
func (s Shape) Cols() int { return s[1] }

// Matrix is an N×D matrix stored row-major.
type Matrix struct {
	shape Shape
	data  []float32
}

// New builds a matrix from rows. All rows must have the same length.
func New(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return &Matrix{}, nil
	}
	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &Matrix{shape: Shape{len(rows), cols}, data: data}, nil
}

// FromData wraps data with the given shape.
func FromData(shape Shape, data []float32) (*Matrix, error) {
	if shape.Rows() < 0 || shape.Cols() < 0 || shape.Rows()*shape.Cols() != len(data) {
		return nil, apperr.Msg(apperr.Corrupt, "vector.from_data",
			fmt.Sprintf("shape %v does not match %d elements", shape, len(data)))
	}
	return &Matrix{shape: shape, data: data}, nil
}

// Shape returns (N, D).
func (m *Matrix) Shape() Shape { return m.shape }

// Rows returns N.
func (m *Matrix) Rows() int { return m.shape.Rows() }

// Cols returns D.
func (m *Matrix) Cols() int { return m.shape.Cols() }

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float32 {
	d := m.shape.Cols()
	return m.data[i*d : (i+1)*d]
}

// Data returns the backing slice.
func (m *Matrix) Data() []float32 { return m.data }

// Bytes encodes the matrix as concatenated little-endian float32 values.
func (m *Matrix) Bytes() []byte {
	return Pack(m.data)
}

// Decode reconstructs a matrix from raw bytes and its recorded shape. The
// byte length must equal N*D*4 exactly.
func Decode(b []byte, shape Shape) (*Matrix, error) {
	const op = "vector.decode"
	n, d := shape.Rows(), shape.Cols()
	if n < 0 || d < 0 {
		return nil, apperr.Msg(apperr.Corrupt, op, fmt.Sprintf("invalid shape %v", shape))
	}
	if n > 0 && len(b)%(n*Float32Size) != 0 {
		return nil, apperr.Msg(apperr.Corrupt, op,
			fmt.Sprintf("%d bytes not divisible into %d rows of float32", len(b), n))
	}
	if len(b) != n*d*Float32Size {
		return nil, apperr.Msg(apperr.Corrupt, op,
			fmt.Sprintf("%d bytes inconsistent with shape %v", len(b), shape))
	}
	return &Matrix{shape: shape, data: Unpack(b)}, nil
}

// InferShape derives (N, D) from a byte length and a known row count.
func InferShape(byteLen, rows int) (Shape, error) {
	if rows <= 0 {
		if byteLen == 0 {
			return Shape{0, 0}, nil
		}
		return Shape{}, apperr.Msg(apperr.Corrupt, "vector.infer_shape",
			fmt.Sprintf("%d bytes for zero rows", byteLen))
	}
	if byteLen%(rows*Float32Size) != 0 {
		return Shape{}, apperr.Msg(apperr.Corrupt, "vector.infer_shape",
			fmt.Sprintf("%d bytes not divisible into %d rows of float32", byteLen, rows))
	}
	return Shape{rows, byteLen / (rows * Float32Size)}, nil
}

// Pack packs float32 values into a byte slice.
func Pack(v []float32) []byte {
	buf := make([]byte, len(v)*Float32Size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*Float32Size:], math.Float32bits(f))
	}
	return buf
}

// Unpack unpacks a byte slice into float32 values. Trailing bytes that do
// not form a whole value are ignored.
func Unpack(b []byte) []float32 {
	v := make([]float32, len(b)/Float32Size)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*Float32Size:]))
	}
	return v
}
