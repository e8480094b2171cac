package vulkan

import (
	"fmt"
	gomath "math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext

	descriptorPool vk.DescriptorPool
	debug          bool
}

func New(p *platform.Platform) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			Allocator: nil,
			Device: &VulkanDevice{
				GraphicsQueueIndex: -1,
				PresentQueueIndex:  -1,
			},
		},
		debug: true,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	vk.SetGetInstanceProcAddr(vr.platform.GetVulkanGetInstanceProcAddress())
	vr.context.procAddr = vr.platform.GetVulkanGetInstanceProcAddress()
	if err := vk.Init(); err != nil {
		core.LogError(err.Error())
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Prisma Engine"),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
	}

	instanceCreateInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: applicationInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := vr.platform.GetRequiredInstanceExtensions()
	if vr.debug {
		requiredExtensions = append(requiredExtensions, VulkanSafeString(vk.ExtDebugReportExtensionName))
		core.LogDebug("Required extensions:")
		for i := range requiredExtensions {
			core.LogDebug(requiredExtensions[i])
		}
	}
	instanceCreateInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	instanceCreateInfo.PpEnabledExtensionNames = requiredExtensions

	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames := []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layer properties")
			core.LogError(err.Error())
			return err
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layer properties")
			core.LogError(err.Error())
			return err
		}

		layers := []string{}
		for _, name := range requiredValidationLayerNames {
			found := false
			for i := range availableLayers {
				availableLayers[i].Deref()
				end := FindFirstZeroInByteArray(availableLayers[i].LayerName[:])
				if name == vk.ToString(availableLayers[i].LayerName[:end+1]) {
					found = true
					layers = append(layers, name+"\x00")
					break
				}
			}
			if !found {
				core.LogWarn("Required validation layer is missing: %s, skipping.", name)
			}
		}
		instanceCreateInfo.EnabledLayerCount = uint32(len(layers))
		instanceCreateInfo.PpEnabledLayerNames = layers
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&instanceCreateInfo, vr.context.Allocator, &instance); res != vk.Success {
		err := fmt.Errorf("failed to create vulkan instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vr.context.Instance = instance

	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var callback vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &callback); res != vk.Success {
			err := fmt.Errorf("failed to create debug report callback")
			core.LogError(err.Error())
			return err
		}
		vr.context.debugMessenger = callback
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		core.LogError("failed to create platform surface")
		return err
	}
	vr.context.Surface = surface

	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("failed to create device")
		return err
	}

	swapchain, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		core.LogError("failed to create swapchain")
		return err
	}
	vr.context.Swapchain = swapchain

	frameCount := vr.context.Swapchain.ImageCount
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, frameCount)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, frameCount)
	for i := uint32(0); i < frameCount; i++ {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create image available semaphore")
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create queue complete semaphore")
		}
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	for i := range vr.context.ImageAvailableSemaphores {
		vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
		vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil

	if vr.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(vr.context.Device.LogicalDevice, vr.descriptorPool, vr.context.Allocator)
		vr.descriptorPool = vk.NullDescriptorPool
	}

	if vr.context.Swapchain != nil {
		vr.context.Swapchain.Destroy(vr.context)
		vr.context.Swapchain = nil
	}

	DeviceDestroy(vr.context)

	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.debug && vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
	}
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	vr.context.Instance = nil
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) error {
	if err := vr.DeviceWaitIdle(); err != nil {
		return err
	}
	return vr.context.Swapchain.Recreate(vr.context, width, height)
}

func (vr *VulkanRenderer) Capabilities() *metadata.RayTracingCapabilities {
	return &vr.context.Capabilities
}

func (vr *VulkanRenderer) FrameCount() uint32 {
	return vr.context.Swapchain.ImageCount
}

func (vr *VulkanRenderer) BufferCreate(usage metadata.BufferUsage, size uint64, data []byte) (*metadata.Buffer, error) {
	return BufferCreate(vr.context, usage, size, data)
}

func (vr *VulkanRenderer) BufferDestroy(buffer *metadata.Buffer) {
	BufferDestroy(vr.context, buffer)
}

func (vr *VulkanRenderer) AccelerationStructureBuildSizes(input *metadata.BuildInput, primitiveCounts []uint32) (*metadata.BuildSizes, error) {
	return AccelerationStructureBuildSizes(vr.context, input, primitiveCounts)
}

func (vr *VulkanRenderer) AccelerationStructureCreate(kind metadata.AccelerationStructureKind, size uint64) (*metadata.AccelerationStructure, error) {
	return AccelerationStructureCreate(vr.context, kind, size)
}

func (vr *VulkanRenderer) AccelerationStructureBuild(structure *metadata.AccelerationStructure, input *metadata.BuildInput, ranges []metadata.BuildRange, scratch *metadata.Buffer) error {
	return AccelerationStructureBuild(vr.context, structure, input, ranges, scratch)
}

func (vr *VulkanRenderer) AccelerationStructureDestroy(structure *metadata.AccelerationStructure) {
	AccelerationStructureDestroy(vr.context, structure)
}

func (vr *VulkanRenderer) PipelineCreate(stages []*metadata.ShaderStage, groups []*metadata.ShaderGroup, maxRecursionDepth uint32) error {
	return PipelineCreate(vr.context, stages, groups, maxRecursionDepth)
}

func (vr *VulkanRenderer) PipelineDestroy() {
	if vr.context.Pipeline != nil {
		vr.context.Pipeline.Destroy(vr.context)
		vr.context.Pipeline = nil
	}
}

func (vr *VulkanRenderer) ShaderGroupHandles(groupCount uint32) ([]byte, error) {
	if vr.context.Pipeline == nil {
		err := fmt.Errorf("shader group handles requested before the pipeline was created")
		core.LogError(err.Error())
		return nil, err
	}
	return rayTracingShaderGroupHandles(vr.context, vr.context.Pipeline.Handle, groupCount)
}

func (vr *VulkanRenderer) StorageImageCreate(extent metadata.Extent) (*metadata.Image, error) {
	return StorageImageCreate(vr.context, extent)
}

func (vr *VulkanRenderer) StorageImageDestroy(image *metadata.Image) {
	StorageImageDestroy(vr.context, image)
}

func (vr *VulkanRenderer) FrameResourcesCreate(frame *metadata.FrameContext, tlas *metadata.AccelerationStructure, vertexBuffer, indexBuffer *metadata.Buffer) error {
	if vr.descriptorPool == vk.NullDescriptorPool {
		pool, err := DescriptorPoolCreate(vr.context, vr.FrameCount())
		if err != nil {
			return err
		}
		vr.descriptorPool = pool
	}

	commandBuffer, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
	if err != nil {
		return err
	}
	frame.CommandBuffer = commandBuffer

	// Created signaled so the first wait on the slot passes.
	fence, err := NewFence(vr.context, true)
	if err != nil {
		return err
	}
	frame.InFlightFence = fence

	return DescriptorSetAllocate(vr.context, vr.descriptorPool, frame, tlas, vertexBuffer, indexBuffer)
}

func (vr *VulkanRenderer) FrameOutputImageBindingUpdate(frame *metadata.FrameContext) error {
	return DescriptorSetUpdateOutputImage(vr.context, frame)
}

func (vr *VulkanRenderer) FrameResourcesDestroy(frame *metadata.FrameContext) {
	if commandBuffer, ok := frame.CommandBuffer.(*VulkanCommandBuffer); ok && commandBuffer != nil {
		commandBuffer.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		frame.CommandBuffer = nil
	}
	if fence, ok := frame.InFlightFence.(*VulkanFence); ok && fence != nil {
		fence.Destroy(vr.context)
		frame.InFlightFence = nil
	}
	// Descriptor sets are returned with the pool at shutdown.
	frame.DescriptorSet = nil
}

func (vr *VulkanRenderer) FenceWait(frame *metadata.FrameContext, timeoutNs uint64) error {
	return frame.InFlightFence.(*VulkanFence).Wait(vr.context, timeoutNs)
}

func (vr *VulkanRenderer) FenceReset(frame *metadata.FrameContext) error {
	return frame.InFlightFence.(*VulkanFence).Reset(vr.context)
}

func (vr *VulkanRenderer) DeviceWaitIdle() error {
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to wait for device idle with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vr *VulkanRenderer) FrameBegin(frame *metadata.FrameContext) error {
	imageIndex, err := vr.context.Swapchain.AcquireNextImageIndex(
		vr.context,
		gomath.MaxUint64,
		vr.context.ImageAvailableSemaphores[frame.SlotIndex],
		vk.NullFence)
	if err != nil {
		return err
	}
	vr.context.ImageIndex = imageIndex

	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	commandBuffer.Reset()
	return commandBuffer.Begin(false, false, false)
}

func (vr *VulkanRenderer) BindPipeline(frame *metadata.FrameContext) {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointRayTracing, vr.context.Pipeline.Handle)
}

func (vr *VulkanRenderer) BindDescriptorSet(frame *metadata.FrameContext) {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	state := frame.DescriptorSet.(*VulkanDescriptorState)
	vk.CmdBindDescriptorSets(
		commandBuffer.Handle,
		vk.PipelineBindPointRayTracing,
		vr.context.Pipeline.PipelineLayout,
		0,
		1,
		[]vk.DescriptorSet{state.Set},
		0,
		nil)
}

func (vr *VulkanRenderer) TraceRays(frame *metadata.FrameContext, table *metadata.ShaderBindingTable, extent metadata.Extent) {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	cmdTraceRays(vr.context, commandBuffer.Handle, table, extent)
}

func (vr *VulkanRenderer) CopyOutputToPresent(frame *metadata.FrameContext, extent metadata.Extent) error {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	swapchain := vr.context.Swapchain
	presentImage := swapchain.Images[vr.context.ImageIndex]
	outputImage := frame.OutputImage.InternalData.(*VulkanImage)

	transitionImageLayout(commandBuffer.Handle, presentImage, swapchain.ImageLayouts[vr.context.ImageIndex], vk.ImageLayoutTransferDstOptimal)
	transitionImageLayout(commandBuffer.Handle, outputImage.Handle, vk.ImageLayoutGeneral, vk.ImageLayoutTransferSrcOptimal)

	copyImageToImage(commandBuffer.Handle, outputImage.Handle, presentImage, extent)

	transitionImageLayout(commandBuffer.Handle, presentImage, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)
	transitionImageLayout(commandBuffer.Handle, outputImage.Handle, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutGeneral)
	swapchain.ImageLayouts[vr.context.ImageIndex] = vk.ImageLayoutPresentSrc
	return nil
}

func (vr *VulkanRenderer) FrameEnd(frame *metadata.FrameContext) error {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	return commandBuffer.End()
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] %s", pLayerPrefix, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] %s", pLayerPrefix, pMessage)
	default:
		core.LogInfo("[%s] %s", pLayerPrefix, pMessage)
	}
	return vk.False
}

func (vr *VulkanRenderer) FrameSubmit(frame *metadata.FrameContext) error {
	commandBuffer := frame.CommandBuffer.(*VulkanCommandBuffer)
	fence := frame.InFlightFence.(*VulkanFence)

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.context.ImageAvailableSemaphores[frame.SlotIndex]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[frame.SlotIndex]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageRayTracingShaderBit)},
	}
	if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
		err := fmt.Errorf("failed to submit frame with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()

	return vr.context.Swapchain.Present(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[frame.SlotIndex],
		vr.context.ImageIndex)
}
