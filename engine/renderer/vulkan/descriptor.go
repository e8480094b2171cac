package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// VulkanDescriptorState is the backend payload stored in
// metadata.FrameContext.DescriptorSet.
type VulkanDescriptorState struct {
	Set vk.DescriptorSet
}

func DescriptorPoolCreate(context *VulkanContext, maxSets uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeAccelerationStructure, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 2 * maxSets},
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       maxSets,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullDescriptorPool, err
	}
	return pool, nil
}

// DescriptorSetAllocate allocates and fully writes one frame slot's set
// against {TLAS, output image, UBO, vertex buffer, index buffer}.
func DescriptorSetAllocate(context *VulkanContext, pool vk.DescriptorPool, frame *metadata.FrameContext, tlas *metadata.AccelerationStructure, vertexBuffer, indexBuffer *metadata.Buffer) error {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{context.Pipeline.DescriptorSetLayout},
	}
	pSets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &pSets[0]); res != vk.Success {
		err := fmt.Errorf("failed to allocate descriptor set with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	state := &VulkanDescriptorState{Set: pSets[0]}
	frame.DescriptorSet = state

	structureHandle := tlas.InternalData.(*VulkanAccelerationStructure).Handle
	structureWriteInfo, freeStructureWriteInfo := writeDescriptorSetAccelerationStructure(structureHandle)
	defer freeStructureWriteInfo()

	imageInfo := vk.DescriptorImageInfo{
		ImageView:   frame.OutputImage.InternalData.(*VulkanImage).View,
		ImageLayout: vk.ImageLayoutGeneral,
	}
	uniformInfo := vk.DescriptorBufferInfo{
		Buffer: frame.UniformBuffer.InternalData.(*VulkanBuffer).Handle,
		Offset: 0,
		Range:  vk.DeviceSize(frame.UniformBuffer.TotalSize),
	}
	vertexInfo := vk.DescriptorBufferInfo{
		Buffer: vertexBuffer.InternalData.(*VulkanBuffer).Handle,
		Offset: 0,
		Range:  vk.DeviceSize(vertexBuffer.TotalSize),
	}
	indexInfo := vk.DescriptorBufferInfo{
		Buffer: indexBuffer.InternalData.(*VulkanBuffer).Handle,
		Offset: 0,
		Range:  vk.DeviceSize(indexBuffer.TotalSize),
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			PNext:           structureWriteInfo,
			DstSet:          state.Set,
			DstBinding:      bindingTopLevelStructure,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeAccelerationStructure,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          state.Set,
			DstBinding:      bindingOutputImage,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          state.Set,
			DstBinding:      bindingUniformBuffer,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{uniformInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          state.Set,
			DstBinding:      bindingVertexBuffer,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{vertexInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          state.Set,
			DstBinding:      bindingIndexBuffer,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{indexInfo},
		},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}

// DescriptorSetUpdateOutputImage rewrites only the storage image binding,
// used after a resize swaps the slot's output image.
func DescriptorSetUpdateOutputImage(context *VulkanContext, frame *metadata.FrameContext) error {
	state, ok := frame.DescriptorSet.(*VulkanDescriptorState)
	if !ok || state == nil {
		err := fmt.Errorf("frame slot %d has no descriptor set to update", frame.SlotIndex)
		core.LogError(err.Error())
		return err
	}

	imageInfo := vk.DescriptorImageInfo{
		ImageView:   frame.OutputImage.InternalData.(*VulkanImage).View,
		ImageLayout: vk.ImageLayoutGeneral,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          state.Set,
		DstBinding:      bindingOutputImage,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}
