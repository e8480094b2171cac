package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/spaghettifunk/prisma/engine/math"
)

func TestGeometryInstanceSerialize(t *testing.T) {
	instance := GeometryInstance{
		Transform:                    math.NewTransformTranslation(1.0, 2.0, 3.0),
		CustomIndex:                  0x00ABCDEF,
		Mask:                         0xFF,
		BindingTableRecordOffset:     0x00123456,
		Flags:                        InstanceFlagTriangleFacingCullDisable,
		AccelerationStructureAddress: 0xDEADBEEF00112233,
	}
	out := instance.Serialize()

	if len(out) != GeometryInstanceSize {
		t.Fatalf("serialized size = %d, want %d", len(out), GeometryInstanceSize)
	}
	if got := binary.LittleEndian.Uint32(out[48:]); got != 0xFFABCDEF {
		t.Errorf("customIndex|mask word = %#08x, want 0xFFABCDEF", got)
	}
	if got := binary.LittleEndian.Uint32(out[52:]); got != 0x01123456 {
		t.Errorf("sbtOffset|flags word = %#08x, want 0x01123456", got)
	}
	if got := binary.LittleEndian.Uint64(out[56:]); got != 0xDEADBEEF00112233 {
		t.Errorf("structure address = %#x", got)
	}
}

func TestHandleSizeAligned(t *testing.T) {
	tests := []struct {
		handleSize uint32
		alignment  uint32
		want       uint32
	}{
		{32, 64, 64},
		{32, 32, 32},
		{64, 64, 64},
		{16, 64, 64},
	}
	for _, tt := range tests {
		caps := RayTracingCapabilities{
			ShaderGroupHandleSize:      tt.handleSize,
			ShaderGroupHandleAlignment: tt.alignment,
		}
		if got := caps.HandleSizeAligned(); got != tt.want {
			t.Errorf("HandleSizeAligned(%d, %d) = %d, want %d", tt.handleSize, tt.alignment, got, tt.want)
		}
	}
}

func TestUniformDataBytes(t *testing.T) {
	uniforms := UniformData{
		ViewInverse: math.NewMat4Identity(),
		ProjInverse: math.NewMat4Identity(),
	}
	out := uniforms.Bytes()
	if len(out) != UniformDataSize {
		t.Fatalf("serialized size = %d, want %d", len(out), UniformDataSize)
	}
	// Both identity diagonals land at 16 float strides.
	for _, base := range []int{0, 64} {
		for i := 0; i < 4; i++ {
			got := binary.LittleEndian.Uint32(out[base+i*5*4:])
			if got != 0x3F800000 {
				t.Errorf("diagonal element %d at base %d = %#08x, want 1.0", i, base, got)
			}
		}
	}
}

func TestBuildInputGeometryCount(t *testing.T) {
	bottom := BuildInput{
		Kind:      AccelerationStructureBottomLevel,
		Triangles: make([]TrianglesGeometry, 3),
	}
	if got := bottom.GeometryCount(); got != 3 {
		t.Errorf("bottom level geometry count = %d, want 3", got)
	}
	top := BuildInput{
		Kind:      AccelerationStructureTopLevel,
		Instances: &InstancesGeometry{},
	}
	if got := top.GeometryCount(); got != 1 {
		t.Errorf("top level geometry count = %d, want 1", got)
	}
}
