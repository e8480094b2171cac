package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// VulkanImage is the backend payload stored in metadata.Image.InternalData.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Layout vk.ImageLayout
}

// StorageImageCreate creates the ray tracing output image in general layout
// so the raygen shader can write it directly.
func StorageImageCreate(context *VulkanContext, extent metadata.Extent) (*metadata.Image, error) {
	internal := &VulkanImage{
		Layout: vk.ImageLayoutUndefined,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatB8g8r8a8Unorm,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageStorageBit) | vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create storage image with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	internal.Handle = handle

	memRequirements := vk.MemoryRequirements{}
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, internal.Handle, &memRequirements)
	memRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex == -1 {
		err := fmt.Errorf("unable to create storage image because the required memory type index was not found")
		core.LogError(err.Error())
		vk.DestroyImage(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := fmt.Errorf("failed to allocate storage image memory with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		vk.DestroyImage(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		return nil, err
	}
	internal.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, internal.Handle, internal.Memory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind storage image memory with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    internal.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatB8g8r8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := fmt.Errorf("failed to create storage image view with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	internal.View = view

	// Move the fresh image to general layout once, through a single use
	// command buffer.
	commandBuffer, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return nil, err
	}
	transitionImageLayout(commandBuffer.Handle, internal.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral)
	internal.Layout = vk.ImageLayoutGeneral
	if err := commandBuffer.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
		return nil, err
	}

	return &metadata.Image{
		ID:           core.GenerateUUID(),
		Width:        extent.Width,
		Height:       extent.Height,
		InternalData: internal,
	}, nil
}

func StorageImageDestroy(context *VulkanContext, image *metadata.Image) {
	if image == nil || image.InternalData == nil {
		return
	}
	internal := image.InternalData.(*VulkanImage)

	if internal.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, internal.View, context.Allocator)
		internal.View = vk.NullImageView
	}
	if internal.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, internal.Handle, context.Allocator)
		internal.Handle = vk.NullImage
	}
	if internal.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, internal.Memory, context.Allocator)
		internal.Memory = vk.NullDeviceMemory
	}
	image.InternalData = nil
}

func imageTransitionMasks(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutUndefined:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case vk.ImageLayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderWriteBit), vk.PipelineStageFlags(vk.PipelineStageRayTracingShaderBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutPresentSrc:
		return vk.AccessFlags(vk.AccessMemoryReadBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
}

func transitionImageLayout(commandBuffer vk.CommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout) {
	srcAccess, srcStage := imageTransitionMasks(oldLayout)
	dstAccess, dstStage := imageTransitionMasks(newLayout)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	vk.CmdPipelineBarrier(commandBuffer, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// copyImageToImage records a full-extent copy between two color images that
// are already in transfer-src and transfer-dst layout respectively.
func copyImageToImage(commandBuffer vk.CommandBuffer, src, dst vk.Image, extent metadata.Extent) {
	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyImage(commandBuffer,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{region})
}
