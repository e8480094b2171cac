package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := fmt.Errorf("failed to create fence")
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (f *VulkanFence) Destroy(context *VulkanContext) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, f.Handle, context.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

func (f *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if f.IsSignaled {
		return nil
	}

	res := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs)
	switch res {
	case vk.Success:
		f.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	case vk.ErrorDeviceLost:
		core.LogError("fence wait reported device lost")
	case vk.ErrorOutOfHostMemory:
		core.LogError("fence wait ran out of host memory")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("fence wait ran out of device memory")
	default:
		core.LogError("fence wait failed with an unexpected error")
	}
	return fmt.Errorf("failed to wait for fence with error `%s`", VulkanResultString(res, true))
}

func (f *VulkanFence) Reset(context *VulkanContext) error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		err := fmt.Errorf("failed to reset fence with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	f.IsSignaled = false
	return nil
}
