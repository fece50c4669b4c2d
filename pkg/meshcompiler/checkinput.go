package meshcompiler

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Input problems reported by CheckInputData.
var (
	ErrFaceTooSmall       = errors.New("face size too small")
	ErrIndexOutOfRange    = errors.New("input index out of range")
	ErrNegativeIndex      = errors.New("negative input index")
	ErrDegenerateFace     = errors.New("degenerate face")
	ErrEmptyFace          = errors.New("empty face")
	ErrUninitializedInput = errors.New("input buffer is not initialized")
)

// CheckInputData looks for common problems in the input. It returns nil or
// a multierr of wrapped sentinel errors, one per finding.
func (c *Compiler) CheckInputData() error {
	if c.faceInput == nil {
		return ErrNoFaceInput
	}

	var err error
	for a, in := range c.inputs {
		if in.count <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: attribute %d", ErrUninitializedInput, a))
		}
	}

	vertex := make([]int, len(c.inputs))
	for f := 0; f < c.faceInput.NumFaces(); f++ {
		size := c.faceInput.FaceSize(f)
		if size == 0 {
			err = multierr.Append(err, fmt.Errorf("%w: face %d", ErrEmptyFace, f))
			continue
		}
		if size < 3 {
			err = multierr.Append(err, fmt.Errorf("%w: face %d, size %d must be at least 3", ErrFaceTooSmall, f, size))
		}

		positions := make(map[int]struct{}, size)
		for k := 0; k < size; k++ {
			c.inputFaceVertex(f, k, vertex)
			for a, idx := range vertex {
				count := c.inputs[a].count
				if count <= 0 {
					continue
				}
				if idx >= count {
					err = multierr.Append(err, fmt.Errorf("%w: face/corner/attribute %d/%d/%d: %d >= buffer size %d",
						ErrIndexOutOfRange, f, k, a, idx, count))
				}
				if idx < 0 {
					err = multierr.Append(err, fmt.Errorf("%w: face/corner/attribute %d/%d/%d: %d",
						ErrNegativeIndex, f, k, a, idx))
				}
			}
			positions[vertex[c.posAttr]] = struct{}{}
		}

		if len(positions) != size {
			err = multierr.Append(err, fmt.Errorf("%w: face %d", ErrDegenerateFace, f))
		}
	}
	return err
}

// SetIndexBufferInterleaved creates numTris triangle faces from a packed
// little-endian index stream with indexSize bytes (1, 2, 4 or 8) per index.
// All attributes of a triangle corner use the same index.
func (c *Compiler) SetIndexBufferInterleaved(numTris, indexSize int, buf []byte) error {
	switch indexSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("unsupported index size %d", indexSize)
	}
	if need := numTris * 3 * indexSize; len(buf) < need {
		return fmt.Errorf("index buffer holds %d bytes, %d needed", len(buf), need)
	}

	c.faceInput, c.dense = nil, nil
	c.SetNumFaces(numTris, numTris*3)

	read := func(i int) int {
		b := buf[i*indexSize:]
		switch indexSize {
		case 1:
			return int(b[0])
		case 2:
			return int(binary.LittleEndian.Uint16(b))
		case 4:
			return int(binary.LittleEndian.Uint32(b))
		default:
			return int(binary.LittleEndian.Uint64(b))
		}
	}

	for t := 0; t < numTris; t++ {
		tri := []int{read(t * 3), read(t*3 + 1), read(t*3 + 2)}
		for a := range c.inputs {
			c.SetFaceAttrib(t, a, tri...)
		}
	}
	return nil
}
