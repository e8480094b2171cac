package vulkan

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

func TestBufferUsageFlags(t *testing.T) {
	tests := []struct {
		name  string
		usage metadata.BufferUsage
		want  vk.BufferUsageFlags
	}{
		{
			"structure input",
			metadata.BufferUsageAccelerationStructureInput,
			vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureBuildInputReadOnlyBit) |
				vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit),
		},
		{
			"structure storage",
			metadata.BufferUsageAccelerationStructureStorage,
			vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBit) |
				vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit),
		},
		{
			"scratch",
			metadata.BufferUsageScratch,
			vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
				vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit),
		},
		{
			"binding table",
			metadata.BufferUsageShaderBindingTable,
			vk.BufferUsageFlags(vk.BufferUsageShaderBindingTableBit) |
				vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit),
		},
		{
			"uniform",
			metadata.BufferUsageUniform,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		},
		{
			"storage",
			metadata.BufferUsageStorage,
			vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		},
	}
	for _, tt := range tests {
		if got := bufferUsageFlags(tt.usage); got != tt.want {
			t.Errorf("bufferUsageFlags(%s) = %#x, want %#x", tt.name, got, tt.want)
		}
	}
}

func TestBufferNeedsDeviceAddress(t *testing.T) {
	tests := []struct {
		usage metadata.BufferUsage
		want  bool
	}{
		{metadata.BufferUsageAccelerationStructureInput, true},
		{metadata.BufferUsageAccelerationStructureStorage, true},
		{metadata.BufferUsageScratch, true},
		{metadata.BufferUsageShaderBindingTable, true},
		{metadata.BufferUsageUniform, false},
		{metadata.BufferUsageStorage, false},
		{metadata.BufferUsageUniform | metadata.BufferUsageScratch, true},
	}
	for _, tt := range tests {
		if got := bufferNeedsDeviceAddress(tt.usage); got != tt.want {
			t.Errorf("bufferNeedsDeviceAddress(%#x) = %v, want %v", tt.usage, got, tt.want)
		}
	}
}

func TestShaderStageFlag(t *testing.T) {
	tests := []struct {
		kind metadata.ShaderStageKind
		want vk.ShaderStageFlagBits
	}{
		{metadata.ShaderStageRaygen, vk.ShaderStageRaygenBit},
		{metadata.ShaderStageMiss, vk.ShaderStageMissBit},
		{metadata.ShaderStageClosestHit, vk.ShaderStageClosestHitBit},
		{metadata.ShaderStageCallable, vk.ShaderStageCallableBit},
	}
	for _, tt := range tests {
		if got := shaderStageFlag(tt.kind); got != tt.want {
			t.Errorf("shaderStageFlag(%s) = %#x, want %#x", tt.kind, got, tt.want)
		}
	}
}

func TestSliceUint32(t *testing.T) {
	words := []uint32{0x07230203, 0x00010500, 0xDEADBEEF}
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	got := sliceUint32(data)
	if len(got) != len(words) {
		t.Fatalf("sliceUint32 returned %d words, want %d", len(got), len(words))
	}
	for i, w := range words {
		if got[i] != w {
			t.Errorf("word %d = %#08x, want %#08x", i, got[i], w)
		}
	}
}
