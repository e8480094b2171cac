package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
	// Layout tracked per swapchain image across the present copy.
	ImageLayouts []vk.ImageLayout
}

func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{}
	if err := swapchain.create(context, width, height); err != nil {
		return nil, err
	}
	return swapchain, nil
}

func (s *VulkanSwapchain) Recreate(context *VulkanContext, width, height uint32) error {
	s.destroyInternal(context)
	return s.create(context, width, height)
}

func (s *VulkanSwapchain) Destroy(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	s.destroyInternal(context)
}

func (s *VulkanSwapchain) create(context *VulkanContext, width, height uint32) error {
	swapchainExtent := vk.Extent2D{Width: width, Height: height}

	// Requery so a resize always sees the surface's current bounds.
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		core.LogError(err.Error())
		return err
	}

	found := false
	for _, format := range context.Device.SwapchainSupport.Formats {
		// Preferred format.
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			s.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		s.ImageFormat = context.Device.SwapchainSupport.Formats[0]
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range context.Device.SwapchainSupport.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	capabilities := context.Device.SwapchainSupport.Capabilities
	if capabilities.CurrentExtent.Width != 0xFFFFFFFF {
		swapchainExtent = capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	min := capabilities.MinImageExtent
	max := capabilities.MaxImageExtent
	swapchainExtent.Width = math.Clamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = math.Clamp(swapchainExtent.Height, min.Height, max.Height)

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	// TransferDst so the traced output image can be copied in before present.
	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.ImageFormat.Format,
		ImageColorSpace:  s.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    presentMode,
		Clipped:        vk.True,
		OldSwapchain:   vk.NullSwapchain,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		queueFamilyIndices := []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = queueFamilyIndices
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	s.Handle = handle

	context.FramebufferWidth = swapchainExtent.Width
	context.FramebufferHeight = swapchainExtent.Height

	s.ImageCount = 0
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, s.Handle, &s.ImageCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain image count with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	s.Images = make([]vk.Image, s.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, s.Handle, &s.ImageCount, s.Images); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	s.ImageLayouts = make([]vk.ImageLayout, s.ImageCount)

	s.Views = make([]vk.ImageView, s.ImageCount)
	for i := uint32(0); i < s.ImageCount; i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   s.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		var view vk.ImageView
		if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
			err := fmt.Errorf("failed to create swapchain image view with error `%s`", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		s.Views[i] = view
	}

	core.LogInfo("Swapchain created successfully with %d images at %dx%d.", s.ImageCount, swapchainExtent.Width, swapchainExtent.Height)
	return nil
}

func (s *VulkanSwapchain) destroyInternal(context *VulkanContext) {
	// Only the views are destroyed; the images are owned by the swapchain.
	for i := range s.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, s.Views[i], context.Allocator)
	}
	s.Views = nil
	if s.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullSwapchain
	}
}

// AcquireNextImageIndex reports core.ErrSwapchainOutOfDate when the surface
// no longer matches; the caller triggers recreation.
func (s *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, s.Handle, timeoutNs, imageAvailableSemaphore, fence, &imageIndex)
	switch res {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	case vk.ErrorDeviceLost:
		return 0, core.ErrDeviceLost
	default:
		err := fmt.Errorf("failed to acquire swapchain image with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return 0, err
	}
}

func (s *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	res := vk.QueuePresent(presentQueue, &presentInfo)
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainOutOfDate
	case vk.ErrorDeviceLost:
		return core.ErrDeviceLost
	default:
		err := fmt.Errorf("failed to present swapchain image with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
}
