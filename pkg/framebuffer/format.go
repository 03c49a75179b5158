package framebuffer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Format describes the pixel layout of an AOV channel
type Format int

// Supported channel formats
const (
	FormatInvalid Format = iota
	FormatUNorm8Vec4
	FormatFloat32
	FormatFloat32Vec3
	FormatFloat32Vec4
	FormatInt32
)

var formatNames = map[Format]string{
	FormatInvalid:     "invalid",
	FormatUNorm8Vec4:  "unorm8Vec4",
	FormatFloat32:     "float32",
	FormatFloat32Vec3: "float32Vec3",
	FormatFloat32Vec4: "float32Vec4",
	FormatInt32:       "int32",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Components returns the number of components per pixel
func (f Format) Components() int {
	switch f {
	case FormatUNorm8Vec4, FormatFloat32Vec4:
		return 4
	case FormatFloat32Vec3:
		return 3
	case FormatFloat32, FormatInt32:
		return 1
	default:
		return 0
	}
}

// ComponentSize returns the size of a single component in bytes
func (f Format) ComponentSize() int {
	switch f {
	case FormatUNorm8Vec4:
		return 1
	case FormatFloat32, FormatFloat32Vec3, FormatFloat32Vec4, FormatInt32:
		return 4
	default:
		return 0
	}
}

// PixelSize returns the size of a single pixel in bytes
func (f Format) PixelSize() int {
	return f.Components() * f.ComponentSize()
}

// DefaultFormat returns the format used for an AOV when the binding does not name one
func DefaultFormat(aovName string) Format {
	switch aovName {
	case "depth":
		return FormatFloat32
	case "sampleCount", "primId", "instanceId":
		return FormatInt32
	default:
		return FormatFloat32Vec4
	}
}

// readComponent reads component c of pixel p as a float64
func readComponent(data []byte, f Format, p, c int) float64 {
	offset := p*f.PixelSize() + c*f.ComponentSize()
	switch f {
	case FormatUNorm8Vec4:
		return float64(data[offset]) / 255.0
	case FormatInt32:
		return float64(int32(binary.LittleEndian.Uint32(data[offset:])))
	default:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])))
	}
}

// writeComponent writes v into component c of pixel p
func writeComponent(data []byte, f Format, p, c int, v float64) {
	offset := p*f.PixelSize() + c*f.ComponentSize()
	switch f {
	case FormatUNorm8Vec4:
		data[offset] = uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	case FormatInt32:
		binary.LittleEndian.PutUint32(data[offset:], uint32(int32(v)))
	default:
		binary.LittleEndian.PutUint32(data[offset:], math.Float32bits(float32(v)))
	}
}
