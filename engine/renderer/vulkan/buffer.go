package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// VulkanBuffer is the backend payload stored in metadata.Buffer.InternalData.
type VulkanBuffer struct {
	Handle       vk.Buffer
	Memory       vk.DeviceMemory
	MemoryFlags  vk.MemoryPropertyFlags
	MappedMemory unsafe.Pointer
}

func bufferUsageFlags(usage metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if usage&metadata.BufferUsageAccelerationStructureInput != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureBuildInputReadOnlyBit) |
			vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}
	if usage&metadata.BufferUsageAccelerationStructureStorage != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBit) |
			vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}
	if usage&metadata.BufferUsageScratch != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
			vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}
	if usage&metadata.BufferUsageShaderBindingTable != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageShaderBindingTableBit) |
			vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}
	if usage&metadata.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage&metadata.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return flags
}

func bufferNeedsDeviceAddress(usage metadata.BufferUsage) bool {
	return usage&(metadata.BufferUsageAccelerationStructureInput|
		metadata.BufferUsageAccelerationStructureStorage|
		metadata.BufferUsageScratch|
		metadata.BufferUsageShaderBindingTable) != 0
}

// BufferCreate allocates a host-visible buffer, uploads data when given and
// keeps the mapping open so callers can rewrite the contents every frame.
func BufferCreate(context *VulkanContext, usage metadata.BufferUsage, size uint64, data []byte) (*metadata.Buffer, error) {
	internal := &VulkanBuffer{
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create buffer with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	internal.Handle = handle

	memRequirements := vk.MemoryRequirements{}
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, internal.Handle, &memRequirements)
	memRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memRequirements.MemoryTypeBits, uint32(internal.MemoryFlags))
	if memoryIndex == -1 {
		err := fmt.Errorf("unable to create buffer because the required memory type index was not found")
		core.LogError(err.Error())
		vk.DestroyBuffer(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	if bufferNeedsDeviceAddress(usage) {
		allocateFlags, freeAllocateFlags := deviceAddressAllocateFlags()
		defer freeAllocateFlags()
		allocateInfo.PNext = allocateFlags
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := fmt.Errorf("failed to allocate buffer memory with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		vk.DestroyBuffer(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		return nil, err
	}
	internal.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, internal.Handle, internal.Memory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind buffer memory with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	var pData unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, internal.Memory, 0, vk.DeviceSize(size), 0, &pData); res != vk.Success {
		err := fmt.Errorf("failed to map buffer memory with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	internal.MappedMemory = pData

	buffer := &metadata.Buffer{
		ID:           core.GenerateUUID(),
		TotalSize:    size,
		Usage:        usage,
		Mapped:       unsafe.Slice((*byte)(pData), size),
		InternalData: internal,
	}
	if data != nil {
		copy(buffer.Mapped, data)
	}

	if bufferNeedsDeviceAddress(usage) {
		buffer.DeviceAddress = getBufferDeviceAddress(context, internal.Handle)
	}

	return buffer, nil
}

func BufferDestroy(context *VulkanContext, buffer *metadata.Buffer) {
	if buffer == nil || buffer.InternalData == nil {
		return
	}
	internal := buffer.InternalData.(*VulkanBuffer)

	if internal.MappedMemory != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, internal.Memory)
		internal.MappedMemory = nil
	}
	if internal.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		internal.Handle = vk.NullBuffer
	}
	if internal.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, internal.Memory, context.Allocator)
		internal.Memory = vk.NullDeviceMemory
	}

	buffer.Mapped = nil
	buffer.InternalData = nil
	buffer.TotalSize = 0
}
