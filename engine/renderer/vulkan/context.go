package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain *VulkanSwapchain

	// Device limits the tracer depends on, filled at device creation.
	Capabilities metadata.RayTracingCapabilities
	// Resolved once from the host-build capability bit.
	BuildStrategy BuildStrategy

	Pipeline *VulkanRayPipeline

	// The loader's vkGetInstanceProcAddr, handed over by the windowing
	// layer before instance creation.
	procAddr unsafe.Pointer
	// Extension entry points resolved at device creation.
	procs rayTracingProcs

	// One per frame slot.
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore

	// Swapchain image index acquired for the slot currently recording.
	ImageIndex uint32
}

// BuildStrategy is how acceleration structure build commands execute.
type BuildStrategy uint8

const (
	// Builds are recorded into a one-shot command buffer and waited on.
	BuildStrategyDeviceCommand BuildStrategy = iota
	// Builds run synchronously on the host.
	BuildStrategyHost
)

func (s BuildStrategy) String() string {
	if s == BuildStrategyHost {
		return "host"
	}
	return "device-command"
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
