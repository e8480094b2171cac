package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
)

// Device extensions the tracer cannot run without.
var requiredDeviceExtensions = []string{
	vk.KhrSwapchainExtensionName,
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
	"VK_KHR_deferred_host_operations",
}

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
}

type vulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex uint32
	PresentFamilyIndex  uint32
}

func DeviceCreate(context *VulkanContext) error {
	if err := selectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create an additional queue for a shared index.
	presentSharesGraphicsQueue := context.Device.GraphicsQueueIndex == context.Device.PresentQueueIndex
	indices := []uint32{uint32(context.Device.GraphicsQueueIndex)}
	if !presentSharesGraphicsQueue {
		indices = append(indices, uint32(context.Device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i].SType = vk.StructureTypeDeviceQueueCreateInfo
		queueCreateInfos[i].QueueFamilyIndex = indices[i]
		queueCreateInfos[i].QueueCount = 1
		queueCreateInfos[i].PQueuePriorities = []float32{1.0}
	}

	// The ray tracing feature chain. Buffer device addresses feed the
	// acceleration structure builds and the binding table regions.
	featureChain, freeFeatureChain := rayTracingFeatureChain()
	defer freeFeatureChain()

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(requiredDeviceExtensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(requiredDeviceExtensions),
		PNext:                   featureChain,
	}

	if res := vk.CreateDevice(
		context.Device.PhysicalDevice,
		&deviceCreateInfo,
		context.Allocator,
		&context.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Logical device created.")

	if err := loadRayTracingProcs(context); err != nil {
		return err
	}

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.GraphicsQueueIndex),
		0,
		&context.Device.GraphicsQueue)
	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.PresentQueueIndex),
		0,
		&context.Device.PresentQueue)
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(
		context.Device.LogicalDevice,
		&poolCreateInfo,
		context.Allocator,
		&context.Device.GraphicsCommandPool); res != vk.Success {
		err := fmt.Errorf("failed to create graphics command pool")
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Graphics command pool created.")

	return queryRayTracingCapabilities(context)
}

func DeviceDestroy(context *VulkanContext) {
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(
		context.Device.LogicalDevice,
		context.Device.GraphicsCommandPool,
		context.Allocator)

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	context.Device.GraphicsQueueIndex = -1
	context.Device.PresentQueueIndex = -1
}

func selectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32 = 0
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices")
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found")
		core.LogFatal(err.Error())
		return err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices")
	}

	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		if !deviceSupportsExtensions(physicalDevices[i], requiredDeviceExtensions) {
			core.LogDebug("Device '%s' is missing a required ray tracing extension, skipping.",
				string(properties.DeviceName[:FindFirstZeroInByteArray(properties.DeviceName[:])]))
			continue
		}

		queueInfo := vulkanPhysicalDeviceQueueFamilyInfo{}
		if !deviceQueueFamilies(physicalDevices[i], context.Surface, &queueInfo) {
			continue
		}

		if err := DeviceQuerySwapchainSupport(physicalDevices[i], context.Surface, &context.Device.SwapchainSupport); err != nil {
			continue
		}
		if context.Device.SwapchainSupport.FormatCount < 1 || context.Device.SwapchainSupport.PresentModeCount < 1 {
			continue
		}

		core.LogInfo("Selected device: '%s'.", string(properties.DeviceName[:FindFirstZeroInByteArray(properties.DeviceName[:])]))
		switch properties.DeviceType {
		default:
			fallthrough
		case vk.PhysicalDeviceTypeOther:
			core.LogInfo("GPU type is Unknown.")
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)

		context.Device.PhysicalDevice = physicalDevices[i]
		context.Device.Properties = properties
		context.Device.GraphicsQueueIndex = int32(queueInfo.GraphicsFamilyIndex)
		context.Device.PresentQueueIndex = int32(queueInfo.PresentFamilyIndex)
		return nil
	}

	err := fmt.Errorf("no device meets the ray tracing requirements")
	core.LogFatal(err.Error())
	return err
}

func deviceSupportsExtensions(physicalDevice vk.PhysicalDevice, required []string) bool {
	var availableExtensionCount uint32 = 0
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}

	available := make(map[string]bool, availableExtensionCount)
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		end := FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:])
		available[vk.ToString(availableExtensions[i].ExtensionName[:end+1])] = true
	}
	for _, name := range required {
		if !available[name] {
			return false
		}
	}
	return true
}

func deviceQueueFamilies(physicalDevice vk.PhysicalDevice, surface vk.Surface, queueInfo *vulkanPhysicalDeviceQueueFamilyInfo) bool {
	var queueFamilyCount uint32 = 0
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, queueFamilies)

	graphicsFound := false
	presentFound := false
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if !graphicsFound && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			queueInfo.GraphicsFamilyIndex = i
			graphicsFound = true
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(physicalDevice, i, surface, &supportsPresent)
		if !presentFound && supportsPresent == vk.True {
			queueInfo.PresentFamilyIndex = i
			presentFound = true
		}
	}
	return graphicsFound && presentFound
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return fmt.Errorf("failed to get physical device surface capabilities")
	}
	supportInfo.Capabilities.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get physical device surface formats")
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return fmt.Errorf("failed to get physical device surface formats")
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get physical device surface present modes")
		core.LogError(err.Error())
		return err
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			err := fmt.Errorf("failed to get physical device surface present modes")
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}
