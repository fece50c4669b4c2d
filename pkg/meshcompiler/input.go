package meshcompiler

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"
)

// attributeInput is the raw data of one declared attribute.
type attributeInput struct {
	data     []byte
	count    int
	stride   int
	src      VertexElement // layout of the stored elements
	internal bool
}

// element writes element idx into dst using the layout desc.
// Missing data and out of range indices produce a zero element.
func (in *attributeInput) element(idx int, dst []byte, desc VertexElement) {
	dst = dst[:desc.Size()]
	clear(dst)

	if in.count == 0 || in.data == nil || idx < 0 || idx >= in.count {
		return
	}

	start := idx * in.stride
	end := start + in.src.Size()
	if end > len(in.data) {
		return
	}
	src := in.data[start:end]

	if in.src.Type == desc.Type && in.src.NumComponents == desc.NumComponents {
		copy(dst, src)
		return
	}

	n := min(in.src.NumComponents, desc.NumComponents)
	srcSize := in.src.Type.Size()
	dstSize := desc.Type.Size()
	for i := 0; i < n; i++ {
		s := src[i*srcSize:]
		d := dst[i*dstSize:]
		if in.src.Type.IsFloat() {
			putFloat(d, desc.Type, readFloat(s, in.src.Type))
		} else {
			putInt(d, desc.Type, readInt(s, in.src.Type))
		}
	}
}

func readFloat(b []byte, t ScalarType) float64 {
	switch t {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return float64(readInt(b, t))
	}
}

func readInt(b []byte, t ScalarType) int64 {
	switch t {
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case Uint32:
		return int64(binary.LittleEndian.Uint32(b))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return int64(binary.LittleEndian.Uint16(b))
	case Int8:
		return int64(int8(b[0]))
	case Uint8:
		return int64(b[0])
	default:
		return int64(readFloat(b, t))
	}
}

func putFloat(b []byte, t ScalarType, v float64) {
	switch t {
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		putInt(b, t, int64(v))
	}
}

func putInt(b []byte, t ScalarType, v int64) {
	switch t {
	case Int32, Uint32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case Int8, Uint8:
		b[0] = byte(v)
	default:
		putFloat(b, t, float64(v))
	}
}

// SetAttribVec sets the whole data array of attribute attrIdx.
//
// format describes the layout of data when it differs from the declared
// element; reads are then converted numerically. A zero stride means tightly
// packed. With internalCopy the data is copied immediately, otherwise data
// must stay valid and unchanged until Build returns.
func (c *Compiler) SetAttribVec(attrIdx, count int, data []byte, stride int, internalCopy bool, format *VertexElement) {
	if attrIdx < 0 {
		return
	}

	decl := c.decl.Element(attrIdx)
	src := decl
	if format != nil {
		src = *format
	}
	size := src.Size()
	if stride <= 0 {
		stride = size
	}

	in := &c.inputs[attrIdx]
	in.count = count
	in.src = src
	in.internal = internalCopy

	if !internalCopy {
		in.data = data
		in.stride = stride
		return
	}

	buf := make([]byte, size*count)
	for i := 0; i < count && data != nil; i++ {
		start := i * stride
		if start >= len(data) {
			break
		}
		copy(buf[i*size:(i+1)*size], data[start:min(start+size, len(data))])
	}
	in.data = buf
	in.stride = size
}

// SetVertices sets the position array.
func (c *Compiler) SetVertices(count int, data []byte, stride int, internalCopy bool) {
	c.SetAttribVec(c.posAttr, count, data, stride, internalCopy, nil)
}

// SetNormals sets the normal array.
func (c *Compiler) SetNormals(count int, data []byte, stride int, internalCopy bool) {
	c.SetAttribVec(c.normalAttr, count, data, stride, internalCopy, nil)
}

// SetTexCoords sets the texture coordinate array.
func (c *Compiler) SetTexCoords(count int, data []byte, stride int, internalCopy bool) {
	c.SetAttribVec(c.texcAttr, count, data, stride, internalCopy, nil)
}

// SetAttribFloat32 copies float32 values with the given component count into
// attribute attrIdx. Values are converted to the declared type when read.
func (c *Compiler) SetAttribFloat32(attrIdx, components int, values []float32) {
	if attrIdx < 0 || components <= 0 {
		return
	}
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	format := VertexElement{Type: Float32, NumComponents: components}
	c.SetAttribVec(attrIdx, len(values)/components, buf, 0, false, &format)
	c.inputs[attrIdx].internal = true
}

// SetAttribFloat64 is SetAttribFloat32 for float64 values.
func (c *Compiler) SetAttribFloat64(attrIdx, components int, values []float64) {
	if attrIdx < 0 || components <= 0 {
		return
	}
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	format := VertexElement{Type: Float64, NumComponents: components}
	c.SetAttribVec(attrIdx, len(values)/components, buf, 0, false, &format)
	c.inputs[attrIdx].internal = true
}

// SetAttribInt32 is SetAttribFloat32 for int32 values.
func (c *Compiler) SetAttribInt32(attrIdx, components int, values []int32) {
	if attrIdx < 0 || components <= 0 {
		return
	}
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	format := VertexElement{Type: Int32, NumComponents: components}
	c.SetAttribVec(attrIdx, len(values)/components, buf, 0, false, &format)
	c.inputs[attrIdx].internal = true
}

// SetAttrib overwrites element idx of an internally copied attribute.
func (c *Compiler) SetAttrib(attrIdx, idx int, data []byte) {
	in := &c.inputs[attrIdx]
	if !in.internal {
		c.log.Error("SetAttrib needs an internal copy of the attribute",
			zap.Int("attr", attrIdx))
		return
	}
	if idx < 0 || idx >= in.count {
		c.log.Error("SetAttrib index out of range",
			zap.Int("attr", attrIdx), zap.Int("index", idx), zap.Int("count", in.count))
		return
	}
	size := in.src.Size()
	copy(in.data[idx*in.stride:idx*in.stride+size], data)
}

// AttribCount returns the number of elements of attribute attrIdx.
func (c *Compiler) AttribCount(attrIdx int) int {
	return c.inputs[attrIdx].count
}
