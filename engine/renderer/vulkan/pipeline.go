package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// Descriptor set bindings shared by every frame slot.
const (
	bindingTopLevelStructure = 0
	bindingOutputImage       = 1
	bindingUniformBuffer     = 2
	bindingVertexBuffer      = 3
	bindingIndexBuffer       = 4
	bindingCount             = 5
)

type VulkanRayPipeline struct {
	Handle              vk.Pipeline
	PipelineLayout      vk.PipelineLayout
	DescriptorSetLayout vk.DescriptorSetLayout
	GroupCount          uint32

	shaderModules []vk.ShaderModule
}

func shaderStageFlag(kind metadata.ShaderStageKind) vk.ShaderStageFlagBits {
	switch kind {
	case metadata.ShaderStageRaygen:
		return vk.ShaderStageRaygenBit
	case metadata.ShaderStageMiss:
		return vk.ShaderStageMissBit
	case metadata.ShaderStageClosestHit:
		return vk.ShaderStageClosestHitBit
	case metadata.ShaderStageCallable:
		return vk.ShaderStageCallableBit
	}
	return 0
}

func sliceUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

// PipelineCreate builds the descriptor set layout, the pipeline layout and
// the ray tracing pipeline from the registered stages and groups.
func PipelineCreate(context *VulkanContext, stages []*metadata.ShaderStage, groups []*metadata.ShaderGroup, maxRecursionDepth uint32) error {
	pipeline := &VulkanRayPipeline{
		GroupCount: uint32(len(groups)),
	}

	layoutBindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         bindingTopLevelStructure,
			DescriptorType:  vk.DescriptorTypeAccelerationStructure,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageRaygenBit),
		},
		{
			Binding:         bindingOutputImage,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageRaygenBit),
		},
		{
			Binding:         bindingUniformBuffer,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageRaygenBit) | vk.ShaderStageFlags(vk.ShaderStageCallableBit),
		},
		{
			Binding:         bindingVertexBuffer,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageClosestHitBit),
		},
		{
			Binding:         bindingIndexBuffer,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageClosestHitBit),
		},
	}

	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var descriptorSetLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &descriptorSetLayout); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	pipeline.DescriptorSetLayout = descriptorSetLayout

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{pipeline.DescriptorSetLayout},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pipelineLayout); res != vk.Success {
		err := fmt.Errorf("failed to create pipeline layout with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	pipeline.PipelineLayout = pipelineLayout

	pipelineStages := make([]rayPipelineStage, len(stages))
	pipeline.shaderModules = make([]vk.ShaderModule, len(stages))
	for i, stage := range stages {
		moduleCreateInfo := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(stage.Code)),
			PCode:    sliceUint32(stage.Code),
		}
		var module vk.ShaderModule
		if res := vk.CreateShaderModule(context.Device.LogicalDevice, &moduleCreateInfo, context.Allocator, &module); res != vk.Success {
			err := fmt.Errorf("failed to create shader module for stage `%s` with error `%s`", stage.Name, VulkanResultString(res, true))
			core.LogError(err.Error())
			pipeline.Destroy(context)
			return err
		}
		pipeline.shaderModules[i] = module
		pipelineStages[i] = rayPipelineStage{
			stage:  shaderStageFlag(stage.Kind),
			module: module,
		}
	}

	depth := maxRecursionDepth
	if depth > context.Capabilities.MaxRayRecursionDepth {
		core.LogWarn("Requested recursion depth %d exceeds the device limit %d, clamping.", depth, context.Capabilities.MaxRayRecursionDepth)
		depth = context.Capabilities.MaxRayRecursionDepth
	}

	handle, err := createRayTracingPipeline(context, pipelineStages, groups, pipeline.PipelineLayout, depth)
	if err != nil {
		pipeline.Destroy(context)
		return err
	}
	pipeline.Handle = handle

	context.Pipeline = pipeline
	core.LogInfo("Ray tracing pipeline created with %d stages in %d groups.", len(stages), len(groups))
	return nil
}

func (p *VulkanRayPipeline) Destroy(context *VulkanContext) {
	for _, module := range p.shaderModules {
		if module != vk.NullShaderModule {
			vk.DestroyShaderModule(context.Device.LogicalDevice, module, context.Allocator)
		}
	}
	p.shaderModules = nil

	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, p.PipelineLayout, context.Allocator)
		p.PipelineLayout = vk.NullPipelineLayout
	}
	if p.DescriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, p.DescriptorSetLayout, context.Allocator)
		p.DescriptorSetLayout = vk.NullDescriptorSetLayout
	}
}
