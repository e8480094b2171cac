package vulkan

// Every ray tracing extension entry point the backend touches is called from
// this file, so a binding discrepancy is one file to mend. The generated
// binding stops at the core 1.0 command surface, so the KHR acceleration
// structure and ray tracing pipeline declarations are hand written below and
// resolved through the loader at device creation.

/*
#include <stdint.h>
#include <stdlib.h>

typedef uint32_t VkFlags;
typedef uint32_t VkBool32;
typedef uint64_t VkDeviceAddress;
typedef uint64_t VkDeviceSize;
typedef int32_t  VkResult;
typedef int32_t  VkStructureType;

typedef void* VkInstance;
typedef void* VkPhysicalDevice;
typedef void* VkDevice;
typedef void* VkCommandBuffer;
typedef uint64_t VkBuffer;
typedef uint64_t VkShaderModule;
typedef uint64_t VkPipeline;
typedef uint64_t VkPipelineLayout;
typedef uint64_t VkPipelineCache;
typedef uint64_t VkDeferredOperationKHR;
typedef uint64_t VkAccelerationStructureKHR;

// Structure type and enum values, numbered as in the registry.
#define VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO                     18
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2                            1000059000
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2                          1000059001
#define VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO                            1000060000
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR        1000150000
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_DEVICE_ADDRESS_INFO_KHR        1000150002
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_AABBS_DATA_KHR        1000150003
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_INSTANCES_DATA_KHR    1000150004
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_TRIANGLES_DATA_KHR    1000150005
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR                   1000150006
#define VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET_ACCELERATION_STRUCTURE_KHR       1000150007
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR   1000150013
#define VK_STRUCTURE_TYPE_RAY_TRACING_PIPELINE_CREATE_INFO_KHR                  1000150015
#define VK_STRUCTURE_TYPE_RAY_TRACING_SHADER_GROUP_CREATE_INFO_KHR              1000150016
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR                1000150017
#define VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_SIZES_INFO_KHR           1000150020
#define VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO                            1000244001
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES       1000257000
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_FEATURES_KHR     1000347000
#define VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_PROPERTIES_KHR   1000347001

#define VK_SUCCESS 0
#define VK_SHADER_UNUSED_KHR (~0U)
#define VK_FORMAT_R32G32B32_SFLOAT 106
#define VK_INDEX_TYPE_UINT32 1

#define VK_GEOMETRY_TYPE_TRIANGLES_KHR 0
#define VK_GEOMETRY_TYPE_INSTANCES_KHR 2
#define VK_GEOMETRY_OPAQUE_BIT_KHR 0x00000001

#define VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR 0
#define VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR 1
#define VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR 1
#define VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR 0
#define VK_BUILD_ACCELERATION_STRUCTURE_ALLOW_UPDATE_BIT_KHR 0x00000001
#define VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_TRACE_BIT_KHR 0x00000004
#define VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_BUILD_BIT_KHR 0x00000008

#define VK_RAY_TRACING_SHADER_GROUP_TYPE_GENERAL_KHR 0
#define VK_RAY_TRACING_SHADER_GROUP_TYPE_TRIANGLES_HIT_GROUP_KHR 1

#define VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT 0x00000002

typedef union VkDeviceOrHostAddressConstKHR {
	VkDeviceAddress deviceAddress;
	const void*     hostAddress;
} VkDeviceOrHostAddressConstKHR;

typedef union VkDeviceOrHostAddressKHR {
	VkDeviceAddress deviceAddress;
	void*           hostAddress;
} VkDeviceOrHostAddressKHR;

typedef struct VkAccelerationStructureGeometryTrianglesDataKHR {
	VkStructureType               sType;
	const void*                   pNext;
	int32_t                       vertexFormat;
	VkDeviceOrHostAddressConstKHR vertexData;
	VkDeviceSize                  vertexStride;
	uint32_t                      maxVertex;
	int32_t                       indexType;
	VkDeviceOrHostAddressConstKHR indexData;
	VkDeviceOrHostAddressConstKHR transformData;
} VkAccelerationStructureGeometryTrianglesDataKHR;

typedef struct VkAccelerationStructureGeometryAabbsDataKHR {
	VkStructureType               sType;
	const void*                   pNext;
	VkDeviceOrHostAddressConstKHR data;
	VkDeviceSize                  stride;
} VkAccelerationStructureGeometryAabbsDataKHR;

typedef struct VkAccelerationStructureGeometryInstancesDataKHR {
	VkStructureType               sType;
	const void*                   pNext;
	VkBool32                      arrayOfPointers;
	VkDeviceOrHostAddressConstKHR data;
} VkAccelerationStructureGeometryInstancesDataKHR;

typedef union VkAccelerationStructureGeometryDataKHR {
	VkAccelerationStructureGeometryTrianglesDataKHR triangles;
	VkAccelerationStructureGeometryAabbsDataKHR     aabbs;
	VkAccelerationStructureGeometryInstancesDataKHR instances;
} VkAccelerationStructureGeometryDataKHR;

typedef struct VkAccelerationStructureGeometryKHR {
	VkStructureType                        sType;
	const void*                            pNext;
	int32_t                                geometryType;
	VkAccelerationStructureGeometryDataKHR geometry;
	VkFlags                                flags;
} VkAccelerationStructureGeometryKHR;

typedef struct VkAccelerationStructureBuildGeometryInfoKHR {
	VkStructureType                                  sType;
	const void*                                      pNext;
	int32_t                                          type;
	VkFlags                                          flags;
	int32_t                                          mode;
	VkAccelerationStructureKHR                       srcAccelerationStructure;
	VkAccelerationStructureKHR                       dstAccelerationStructure;
	uint32_t                                         geometryCount;
	const VkAccelerationStructureGeometryKHR*        pGeometries;
	const VkAccelerationStructureGeometryKHR* const* ppGeometries;
	VkDeviceOrHostAddressKHR                         scratchData;
} VkAccelerationStructureBuildGeometryInfoKHR;

typedef struct VkAccelerationStructureBuildRangeInfoKHR {
	uint32_t primitiveCount;
	uint32_t primitiveOffset;
	uint32_t firstVertex;
	uint32_t transformOffset;
} VkAccelerationStructureBuildRangeInfoKHR;

typedef struct VkAccelerationStructureBuildSizesInfoKHR {
	VkStructureType sType;
	const void*     pNext;
	VkDeviceSize    accelerationStructureSize;
	VkDeviceSize    updateScratchSize;
	VkDeviceSize    buildScratchSize;
} VkAccelerationStructureBuildSizesInfoKHR;

typedef struct VkAccelerationStructureCreateInfoKHR {
	VkStructureType            sType;
	const void*                pNext;
	VkFlags                    createFlags;
	VkBuffer                   buffer;
	VkDeviceSize               offset;
	VkDeviceSize               size;
	int32_t                    type;
	VkDeviceAddress            deviceAddress;
} VkAccelerationStructureCreateInfoKHR;

typedef struct VkAccelerationStructureDeviceAddressInfoKHR {
	VkStructureType            sType;
	const void*                pNext;
	VkAccelerationStructureKHR accelerationStructure;
} VkAccelerationStructureDeviceAddressInfoKHR;

typedef struct VkPipelineShaderStageCreateInfo {
	VkStructureType sType;
	const void*     pNext;
	VkFlags         flags;
	VkFlags         stage;
	VkShaderModule  module;
	const char*     pName;
	const void*     pSpecializationInfo;
} VkPipelineShaderStageCreateInfo;

typedef struct VkRayTracingShaderGroupCreateInfoKHR {
	VkStructureType sType;
	const void*     pNext;
	int32_t         type;
	uint32_t        generalShader;
	uint32_t        closestHitShader;
	uint32_t        anyHitShader;
	uint32_t        intersectionShader;
	const void*     pShaderGroupCaptureReplayHandle;
} VkRayTracingShaderGroupCreateInfoKHR;

typedef struct VkRayTracingPipelineCreateInfoKHR {
	VkStructureType                             sType;
	const void*                                 pNext;
	VkFlags                                     flags;
	uint32_t                                    stageCount;
	const VkPipelineShaderStageCreateInfo*      pStages;
	uint32_t                                    groupCount;
	const VkRayTracingShaderGroupCreateInfoKHR* pGroups;
	uint32_t                                    maxPipelineRayRecursionDepth;
	const void*                                 pLibraryInfo;
	const void*                                 pLibraryInterface;
	const void*                                 pDynamicState;
	VkPipelineLayout                            layout;
	VkPipeline                                  basePipelineHandle;
	int32_t                                     basePipelineIndex;
} VkRayTracingPipelineCreateInfoKHR;

typedef struct VkStridedDeviceAddressRegionKHR {
	VkDeviceAddress deviceAddress;
	VkDeviceSize    stride;
	VkDeviceSize    size;
} VkStridedDeviceAddressRegionKHR;

typedef struct VkWriteDescriptorSetAccelerationStructureKHR {
	VkStructureType                   sType;
	const void*                       pNext;
	uint32_t                          accelerationStructureCount;
	const VkAccelerationStructureKHR* pAccelerationStructures;
} VkWriteDescriptorSetAccelerationStructureKHR;

typedef struct VkBufferDeviceAddressInfo {
	VkStructureType sType;
	const void*     pNext;
	VkBuffer        buffer;
} VkBufferDeviceAddressInfo;

typedef struct VkMemoryAllocateFlagsInfo {
	VkStructureType sType;
	const void*     pNext;
	VkFlags         flags;
	uint32_t        deviceMask;
} VkMemoryAllocateFlagsInfo;

typedef struct VkPhysicalDeviceBufferDeviceAddressFeatures {
	VkStructureType sType;
	void*           pNext;
	VkBool32        bufferDeviceAddress;
	VkBool32        bufferDeviceAddressCaptureReplay;
	VkBool32        bufferDeviceAddressMultiDevice;
} VkPhysicalDeviceBufferDeviceAddressFeatures;

typedef struct VkPhysicalDeviceAccelerationStructureFeaturesKHR {
	VkStructureType sType;
	void*           pNext;
	VkBool32        accelerationStructure;
	VkBool32        accelerationStructureCaptureReplay;
	VkBool32        accelerationStructureIndirectBuild;
	VkBool32        accelerationStructureHostCommands;
	VkBool32        descriptorBindingAccelerationStructureUpdateAfterBind;
} VkPhysicalDeviceAccelerationStructureFeaturesKHR;

typedef struct VkPhysicalDeviceRayTracingPipelineFeaturesKHR {
	VkStructureType sType;
	void*           pNext;
	VkBool32        rayTracingPipeline;
	VkBool32        rayTracingPipelineShaderGroupHandleCaptureReplay;
	VkBool32        rayTracingPipelineShaderGroupHandleCaptureReplayMixed;
	VkBool32        rayTracingPipelineTraceRaysIndirect;
	VkBool32        rayTraversalPrimitiveCulling;
} VkPhysicalDeviceRayTracingPipelineFeaturesKHR;

typedef struct VkPhysicalDeviceRayTracingPipelinePropertiesKHR {
	VkStructureType sType;
	void*           pNext;
	uint32_t        shaderGroupHandleSize;
	uint32_t        maxRayRecursionDepth;
	uint32_t        maxShaderGroupStride;
	uint32_t        shaderGroupBaseAlignment;
	uint32_t        shaderGroupHandleCaptureReplaySize;
	uint32_t        maxRayDispatchInvocationCount;
	uint32_t        shaderGroupHandleAlignment;
	uint32_t        maxRayHitAttributeSize;
} VkPhysicalDeviceRayTracingPipelinePropertiesKHR;

// The core property and feature blocks are read through the generated
// binding, so the embedded copies stay opaque blobs. uint64_t elements
// keep the alignment the real structs have.
typedef struct VkPhysicalDeviceProperties2 {
	VkStructureType sType;
	void*           pNext;
	uint64_t        properties[103];
} VkPhysicalDeviceProperties2;

typedef struct VkPhysicalDeviceFeatures2 {
	VkStructureType sType;
	void*           pNext;
	uint32_t        features[55];
} VkPhysicalDeviceFeatures2;

// Layout guards against transcription slips in the declarations above.
_Static_assert(sizeof(VkAccelerationStructureGeometryTrianglesDataKHR) == 64, "triangles data layout");
_Static_assert(sizeof(VkAccelerationStructureGeometryKHR) == 96, "geometry layout");
_Static_assert(sizeof(VkAccelerationStructureBuildGeometryInfoKHR) == 80, "build geometry info layout");
_Static_assert(sizeof(VkAccelerationStructureCreateInfoKHR) == 64, "create info layout");
_Static_assert(sizeof(VkAccelerationStructureBuildSizesInfoKHR) == 40, "build sizes layout");
_Static_assert(sizeof(VkPipelineShaderStageCreateInfo) == 48, "shader stage layout");
_Static_assert(sizeof(VkRayTracingShaderGroupCreateInfoKHR) == 48, "shader group layout");
_Static_assert(sizeof(VkRayTracingPipelineCreateInfoKHR) == 104, "pipeline create info layout");
_Static_assert(sizeof(VkStridedDeviceAddressRegionKHR) == 24, "strided region layout");
_Static_assert(sizeof(VkWriteDescriptorSetAccelerationStructureKHR) == 32, "descriptor write layout");
_Static_assert(sizeof(VkPhysicalDeviceProperties2) == 840, "properties2 layout");
_Static_assert(sizeof(VkPhysicalDeviceFeatures2) == 240, "features2 layout");

typedef void (*PFN_vkVoidFunction)(void);
typedef PFN_vkVoidFunction (*PFN_vkGetInstanceProcAddr)(VkInstance, const char*);
typedef PFN_vkVoidFunction (*PFN_vkGetDeviceProcAddr)(VkDevice, const char*);

typedef VkResult (*PFN_vkCreateAccelerationStructureKHR)(VkDevice, const VkAccelerationStructureCreateInfoKHR*, const void*, VkAccelerationStructureKHR*);
typedef void (*PFN_vkDestroyAccelerationStructureKHR)(VkDevice, VkAccelerationStructureKHR, const void*);
typedef void (*PFN_vkGetAccelerationStructureBuildSizesKHR)(VkDevice, int32_t, const VkAccelerationStructureBuildGeometryInfoKHR*, const uint32_t*, VkAccelerationStructureBuildSizesInfoKHR*);
typedef VkDeviceAddress (*PFN_vkGetAccelerationStructureDeviceAddressKHR)(VkDevice, const VkAccelerationStructureDeviceAddressInfoKHR*);
typedef void (*PFN_vkCmdBuildAccelerationStructuresKHR)(VkCommandBuffer, uint32_t, const VkAccelerationStructureBuildGeometryInfoKHR*, const VkAccelerationStructureBuildRangeInfoKHR* const*);
typedef VkResult (*PFN_vkBuildAccelerationStructuresKHR)(VkDevice, VkDeferredOperationKHR, uint32_t, const VkAccelerationStructureBuildGeometryInfoKHR*, const VkAccelerationStructureBuildRangeInfoKHR* const*);
typedef VkResult (*PFN_vkCreateRayTracingPipelinesKHR)(VkDevice, VkDeferredOperationKHR, VkPipelineCache, uint32_t, const VkRayTracingPipelineCreateInfoKHR*, const void*, VkPipeline*);
typedef VkResult (*PFN_vkGetRayTracingShaderGroupHandlesKHR)(VkDevice, VkPipeline, uint32_t, uint32_t, size_t, void*);
typedef void (*PFN_vkCmdTraceRaysKHR)(VkCommandBuffer, const VkStridedDeviceAddressRegionKHR*, const VkStridedDeviceAddressRegionKHR*, const VkStridedDeviceAddressRegionKHR*, const VkStridedDeviceAddressRegionKHR*, uint32_t, uint32_t, uint32_t);
typedef VkDeviceAddress (*PFN_vkGetBufferDeviceAddress)(VkDevice, const VkBufferDeviceAddressInfo*);
typedef void (*PFN_vkGetPhysicalDeviceProperties2)(VkPhysicalDevice, VkPhysicalDeviceProperties2*);
typedef void (*PFN_vkGetPhysicalDeviceFeatures2)(VkPhysicalDevice, VkPhysicalDeviceFeatures2*);

// Go cannot call C function pointers, so every entry point gets a bridge.
static PFN_vkVoidFunction resolveInstanceProc(void* loader, VkInstance instance, const char* name) {
	return ((PFN_vkGetInstanceProcAddr)loader)(instance, name);
}
static PFN_vkVoidFunction resolveDeviceProc(PFN_vkVoidFunction getDeviceProcAddr, VkDevice device, const char* name) {
	return ((PFN_vkGetDeviceProcAddr)getDeviceProcAddr)(device, name);
}
static VkResult call_vkCreateAccelerationStructureKHR(PFN_vkVoidFunction fn, VkDevice device, const VkAccelerationStructureCreateInfoKHR* info, VkAccelerationStructureKHR* structure) {
	return ((PFN_vkCreateAccelerationStructureKHR)fn)(device, info, NULL, structure);
}
static void call_vkDestroyAccelerationStructureKHR(PFN_vkVoidFunction fn, VkDevice device, VkAccelerationStructureKHR structure) {
	((PFN_vkDestroyAccelerationStructureKHR)fn)(device, structure, NULL);
}
static void call_vkGetAccelerationStructureBuildSizesKHR(PFN_vkVoidFunction fn, VkDevice device, int32_t buildType, const VkAccelerationStructureBuildGeometryInfoKHR* info, const uint32_t* primitiveCounts, VkAccelerationStructureBuildSizesInfoKHR* sizes) {
	((PFN_vkGetAccelerationStructureBuildSizesKHR)fn)(device, buildType, info, primitiveCounts, sizes);
}
static VkDeviceAddress call_vkGetAccelerationStructureDeviceAddressKHR(PFN_vkVoidFunction fn, VkDevice device, const VkAccelerationStructureDeviceAddressInfoKHR* info) {
	return ((PFN_vkGetAccelerationStructureDeviceAddressKHR)fn)(device, info);
}
static void call_vkCmdBuildAccelerationStructuresKHR(PFN_vkVoidFunction fn, VkCommandBuffer commandBuffer, uint32_t infoCount, const VkAccelerationStructureBuildGeometryInfoKHR* infos, const VkAccelerationStructureBuildRangeInfoKHR* const* ranges) {
	((PFN_vkCmdBuildAccelerationStructuresKHR)fn)(commandBuffer, infoCount, infos, ranges);
}
static VkResult call_vkBuildAccelerationStructuresKHR(PFN_vkVoidFunction fn, VkDevice device, uint32_t infoCount, const VkAccelerationStructureBuildGeometryInfoKHR* infos, const VkAccelerationStructureBuildRangeInfoKHR* const* ranges) {
	return ((PFN_vkBuildAccelerationStructuresKHR)fn)(device, (VkDeferredOperationKHR)0, infoCount, infos, ranges);
}
static VkResult call_vkCreateRayTracingPipelinesKHR(PFN_vkVoidFunction fn, VkDevice device, uint32_t createInfoCount, const VkRayTracingPipelineCreateInfoKHR* infos, VkPipeline* pipelines) {
	return ((PFN_vkCreateRayTracingPipelinesKHR)fn)(device, (VkDeferredOperationKHR)0, (VkPipelineCache)0, createInfoCount, infos, NULL, pipelines);
}
static VkResult call_vkGetRayTracingShaderGroupHandlesKHR(PFN_vkVoidFunction fn, VkDevice device, VkPipeline pipeline, uint32_t firstGroup, uint32_t groupCount, size_t dataSize, void* data) {
	return ((PFN_vkGetRayTracingShaderGroupHandlesKHR)fn)(device, pipeline, firstGroup, groupCount, dataSize, data);
}
static void call_vkCmdTraceRaysKHR(PFN_vkVoidFunction fn, VkCommandBuffer commandBuffer, const VkStridedDeviceAddressRegionKHR* raygen, const VkStridedDeviceAddressRegionKHR* miss, const VkStridedDeviceAddressRegionKHR* hit, const VkStridedDeviceAddressRegionKHR* callable, uint32_t width, uint32_t height, uint32_t depth) {
	((PFN_vkCmdTraceRaysKHR)fn)(commandBuffer, raygen, miss, hit, callable, width, height, depth);
}
static VkDeviceAddress call_vkGetBufferDeviceAddress(PFN_vkVoidFunction fn, VkDevice device, const VkBufferDeviceAddressInfo* info) {
	return ((PFN_vkGetBufferDeviceAddress)fn)(device, info);
}
static void call_vkGetPhysicalDeviceProperties2(PFN_vkVoidFunction fn, VkPhysicalDevice physicalDevice, VkPhysicalDeviceProperties2* properties) {
	((PFN_vkGetPhysicalDeviceProperties2)fn)(physicalDevice, properties);
}
static void call_vkGetPhysicalDeviceFeatures2(PFN_vkVoidFunction fn, VkPhysicalDevice physicalDevice, VkPhysicalDeviceFeatures2* features) {
	((PFN_vkGetPhysicalDeviceFeatures2)fn)(physicalDevice, features);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// VulkanAccelerationStructure is the backend payload stored in
// metadata.AccelerationStructure.InternalData.
type VulkanAccelerationStructure struct {
	Handle vk.AccelerationStructure
}

// rayTracingProcs holds the extension entry points resolved once per
// logical device.
type rayTracingProcs struct {
	createStructure     C.PFN_vkVoidFunction
	destroyStructure    C.PFN_vkVoidFunction
	getBuildSizes       C.PFN_vkVoidFunction
	getStructureAddress C.PFN_vkVoidFunction
	cmdBuildStructures  C.PFN_vkVoidFunction
	buildStructures     C.PFN_vkVoidFunction
	createPipelines     C.PFN_vkVoidFunction
	getGroupHandles     C.PFN_vkVoidFunction
	cmdTraceRays        C.PFN_vkVoidFunction
	getBufferAddress    C.PFN_vkVoidFunction
	getProperties2      C.PFN_vkVoidFunction
	getFeatures2        C.PFN_vkVoidFunction
}

// Handle conversions between the generated binding's types and the local
// declarations. Both sides are 8 bytes on every platform the extensions
// ship on, so a reinterpreting copy is exact.
func instanceC(instance vk.Instance) C.VkInstance {
	return *(*C.VkInstance)(unsafe.Pointer(&instance))
}

func physicalDeviceC(physicalDevice vk.PhysicalDevice) C.VkPhysicalDevice {
	return *(*C.VkPhysicalDevice)(unsafe.Pointer(&physicalDevice))
}

func deviceC(device vk.Device) C.VkDevice {
	return *(*C.VkDevice)(unsafe.Pointer(&device))
}

func commandBufferC(commandBuffer vk.CommandBuffer) C.VkCommandBuffer {
	return *(*C.VkCommandBuffer)(unsafe.Pointer(&commandBuffer))
}

func bufferC(buffer vk.Buffer) C.VkBuffer {
	return *(*C.VkBuffer)(unsafe.Pointer(&buffer))
}

func shaderModuleC(module vk.ShaderModule) C.VkShaderModule {
	return *(*C.VkShaderModule)(unsafe.Pointer(&module))
}

func pipelineLayoutC(layout vk.PipelineLayout) C.VkPipelineLayout {
	return *(*C.VkPipelineLayout)(unsafe.Pointer(&layout))
}

func pipelineC(pipeline vk.Pipeline) C.VkPipeline {
	return *(*C.VkPipeline)(unsafe.Pointer(&pipeline))
}

func pipelineFromC(pipeline C.VkPipeline) vk.Pipeline {
	var out vk.Pipeline
	*(*C.VkPipeline)(unsafe.Pointer(&out)) = pipeline
	return out
}

func accelerationStructureC(structure vk.AccelerationStructure) C.VkAccelerationStructureKHR {
	return *(*C.VkAccelerationStructureKHR)(unsafe.Pointer(&structure))
}

func accelerationStructureFromC(structure C.VkAccelerationStructureKHR) vk.AccelerationStructure {
	var out vk.AccelerationStructure
	*(*C.VkAccelerationStructureKHR)(unsafe.Pointer(&out)) = structure
	return out
}

// loadRayTracingProcs resolves the hand-bound entry points through the
// loader the windowing layer handed over. Runs once, right after logical
// device creation.
func loadRayTracingProcs(context *VulkanContext) error {
	if context.procAddr == nil {
		return fmt.Errorf("no loader entry point to resolve ray tracing procedures from")
	}
	instance := instanceC(context.Instance)
	device := deviceC(context.Device.LogicalDevice)

	instanceProc := func(name string) C.PFN_vkVoidFunction {
		cName := C.CString(name)
		defer C.free(unsafe.Pointer(cName))
		return C.resolveInstanceProc(context.procAddr, instance, cName)
	}
	getDeviceProcAddr := instanceProc("vkGetDeviceProcAddr")
	if getDeviceProcAddr == nil {
		return fmt.Errorf("loader does not expose vkGetDeviceProcAddr")
	}
	deviceProc := func(name string) C.PFN_vkVoidFunction {
		cName := C.CString(name)
		defer C.free(unsafe.Pointer(cName))
		return C.resolveDeviceProc(getDeviceProcAddr, device, cName)
	}

	procs := &context.procs
	missing := []string{}
	resolve := func(target *C.PFN_vkVoidFunction, name string) {
		*target = deviceProc(name)
		if *target == nil {
			missing = append(missing, name)
		}
	}
	resolve(&procs.createStructure, "vkCreateAccelerationStructureKHR")
	resolve(&procs.destroyStructure, "vkDestroyAccelerationStructureKHR")
	resolve(&procs.getBuildSizes, "vkGetAccelerationStructureBuildSizesKHR")
	resolve(&procs.getStructureAddress, "vkGetAccelerationStructureDeviceAddressKHR")
	resolve(&procs.cmdBuildStructures, "vkCmdBuildAccelerationStructuresKHR")
	resolve(&procs.buildStructures, "vkBuildAccelerationStructuresKHR")
	resolve(&procs.createPipelines, "vkCreateRayTracingPipelinesKHR")
	resolve(&procs.getGroupHandles, "vkGetRayTracingShaderGroupHandlesKHR")
	resolve(&procs.cmdTraceRays, "vkCmdTraceRaysKHR")

	// Core in 1.2, but drivers predating the promotion only ship the
	// KHR spelling.
	procs.getBufferAddress = deviceProc("vkGetBufferDeviceAddress")
	if procs.getBufferAddress == nil {
		procs.getBufferAddress = deviceProc("vkGetBufferDeviceAddressKHR")
	}
	if procs.getBufferAddress == nil {
		missing = append(missing, "vkGetBufferDeviceAddress")
	}

	procs.getProperties2 = instanceProc("vkGetPhysicalDeviceProperties2")
	if procs.getProperties2 == nil {
		missing = append(missing, "vkGetPhysicalDeviceProperties2")
	}
	procs.getFeatures2 = instanceProc("vkGetPhysicalDeviceFeatures2")
	if procs.getFeatures2 == nil {
		missing = append(missing, "vkGetPhysicalDeviceFeatures2")
	}

	if len(missing) > 0 {
		err := fmt.Errorf("device does not expose required entry points: %v", missing)
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Ray tracing entry points resolved.")
	return nil
}

// queryRayTracingCapabilities reads the pipeline property limits and the
// host-build feature bit, and resolves the build strategy once.
func queryRayTracingCapabilities(context *VulkanContext) error {
	physicalDevice := physicalDeviceC(context.Device.PhysicalDevice)

	pipelineProperties := (*C.VkPhysicalDeviceRayTracingPipelinePropertiesKHR)(C.malloc(C.sizeof_VkPhysicalDeviceRayTracingPipelinePropertiesKHR))
	defer C.free(unsafe.Pointer(pipelineProperties))
	*pipelineProperties = C.VkPhysicalDeviceRayTracingPipelinePropertiesKHR{
		sType: C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_PROPERTIES_KHR,
	}
	var properties2 C.VkPhysicalDeviceProperties2
	properties2.sType = C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2
	properties2.pNext = unsafe.Pointer(pipelineProperties)
	C.call_vkGetPhysicalDeviceProperties2(context.procs.getProperties2, physicalDevice, &properties2)

	structureFeatures := (*C.VkPhysicalDeviceAccelerationStructureFeaturesKHR)(C.malloc(C.sizeof_VkPhysicalDeviceAccelerationStructureFeaturesKHR))
	defer C.free(unsafe.Pointer(structureFeatures))
	*structureFeatures = C.VkPhysicalDeviceAccelerationStructureFeaturesKHR{
		sType: C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR,
	}
	var features2 C.VkPhysicalDeviceFeatures2
	features2.sType = C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2
	features2.pNext = unsafe.Pointer(structureFeatures)
	C.call_vkGetPhysicalDeviceFeatures2(context.procs.getFeatures2, physicalDevice, &features2)

	context.Capabilities.ShaderGroupHandleSize = uint32(pipelineProperties.shaderGroupHandleSize)
	context.Capabilities.ShaderGroupHandleAlignment = uint32(pipelineProperties.shaderGroupHandleAlignment)
	context.Capabilities.MaxRayRecursionDepth = uint32(pipelineProperties.maxRayRecursionDepth)
	context.Capabilities.HostBuildSupported = structureFeatures.accelerationStructureHostCommands == 1

	context.BuildStrategy = BuildStrategyDeviceCommand
	if context.Capabilities.HostBuildSupported {
		context.BuildStrategy = BuildStrategyHost
	}

	core.LogInfo("Shader group handles: %d bytes at %d byte alignment, recursion limit %d.",
		context.Capabilities.ShaderGroupHandleSize,
		context.Capabilities.ShaderGroupHandleAlignment,
		context.Capabilities.MaxRayRecursionDepth)
	core.LogInfo("Acceleration structure build strategy: %s.", context.BuildStrategy)
	return nil
}

// rayTracingFeatureChain allocates the device creation pNext chain that
// enables buffer device addresses, acceleration structures and the ray
// tracing pipeline. The caller frees it once the device exists.
func rayTracingFeatureChain() (unsafe.Pointer, func()) {
	pipelineFeatures := (*C.VkPhysicalDeviceRayTracingPipelineFeaturesKHR)(C.malloc(C.sizeof_VkPhysicalDeviceRayTracingPipelineFeaturesKHR))
	*pipelineFeatures = C.VkPhysicalDeviceRayTracingPipelineFeaturesKHR{
		sType:              C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_FEATURES_KHR,
		rayTracingPipeline: 1,
	}
	structureFeatures := (*C.VkPhysicalDeviceAccelerationStructureFeaturesKHR)(C.malloc(C.sizeof_VkPhysicalDeviceAccelerationStructureFeaturesKHR))
	*structureFeatures = C.VkPhysicalDeviceAccelerationStructureFeaturesKHR{
		sType:                 C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR,
		pNext:                 unsafe.Pointer(pipelineFeatures),
		accelerationStructure: 1,
	}
	addressFeatures := (*C.VkPhysicalDeviceBufferDeviceAddressFeatures)(C.malloc(C.sizeof_VkPhysicalDeviceBufferDeviceAddressFeatures))
	*addressFeatures = C.VkPhysicalDeviceBufferDeviceAddressFeatures{
		sType:               C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES,
		pNext:               unsafe.Pointer(structureFeatures),
		bufferDeviceAddress: 1,
	}
	return unsafe.Pointer(addressFeatures), func() {
		C.free(unsafe.Pointer(addressFeatures))
		C.free(unsafe.Pointer(structureFeatures))
		C.free(unsafe.Pointer(pipelineFeatures))
	}
}

// deviceAddressAllocateFlags allocates the pNext payload marking an
// allocation as device address capable. The caller frees it after the
// allocation call returns.
func deviceAddressAllocateFlags() (unsafe.Pointer, func()) {
	flagsInfo := (*C.VkMemoryAllocateFlagsInfo)(C.malloc(C.sizeof_VkMemoryAllocateFlagsInfo))
	*flagsInfo = C.VkMemoryAllocateFlagsInfo{
		sType: C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO,
		flags: C.VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT,
	}
	return unsafe.Pointer(flagsInfo), func() { C.free(unsafe.Pointer(flagsInfo)) }
}

// getBufferDeviceAddress queries the device address backing buffer region
// arithmetic for builds and the binding table.
func getBufferDeviceAddress(context *VulkanContext, buffer vk.Buffer) uint64 {
	var addressInfo C.VkBufferDeviceAddressInfo
	addressInfo.sType = C.VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO
	addressInfo.buffer = bufferC(buffer)
	return uint64(C.call_vkGetBufferDeviceAddress(context.procs.getBufferAddress, deviceC(context.Device.LogicalDevice), &addressInfo))
}

// writeDescriptorSetAccelerationStructure allocates the pNext payload of
// an acceleration structure descriptor write. The caller frees it after
// the descriptor update call returns.
func writeDescriptorSetAccelerationStructure(structure vk.AccelerationStructure) (unsafe.Pointer, func()) {
	handle := (*C.VkAccelerationStructureKHR)(C.malloc(C.sizeof_VkAccelerationStructureKHR))
	*handle = accelerationStructureC(structure)
	write := (*C.VkWriteDescriptorSetAccelerationStructureKHR)(C.malloc(C.sizeof_VkWriteDescriptorSetAccelerationStructureKHR))
	*write = C.VkWriteDescriptorSetAccelerationStructureKHR{
		sType:                      C.VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET_ACCELERATION_STRUCTURE_KHR,
		accelerationStructureCount: 1,
		pAccelerationStructures:    handle,
	}
	return unsafe.Pointer(write), func() {
		C.free(unsafe.Pointer(handle))
		C.free(unsafe.Pointer(write))
	}
}

func accelerationStructureType(kind metadata.AccelerationStructureKind) C.int32_t {
	if kind == metadata.AccelerationStructureTopLevel {
		return C.VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR
	}
	return C.VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR
}

func buildFlags(flags metadata.BuildFlags) C.VkFlags {
	var out C.VkFlags
	if flags&metadata.BuildFlagPreferFastTrace != 0 {
		out |= C.VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_TRACE_BIT_KHR
	}
	if flags&metadata.BuildFlagPreferFastBuild != 0 {
		out |= C.VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_BUILD_BIT_KHR
	}
	if flags&metadata.BuildFlagAllowUpdate != 0 {
		out |= C.VK_BUILD_ACCELERATION_STRUCTURE_ALLOW_UPDATE_BIT_KHR
	}
	return out
}

func bufferAddressC(buffer *metadata.Buffer) C.VkDeviceAddress {
	if buffer == nil {
		return 0
	}
	return C.VkDeviceAddress(buffer.DeviceAddress)
}

func setDeviceAddressConst(address *C.VkDeviceOrHostAddressConstKHR, buffer *metadata.Buffer) {
	*(*C.VkDeviceAddress)(unsafe.Pointer(address)) = bufferAddressC(buffer)
}

// buildGeometries converts a build input into the extension's geometry
// records. The array lives in C memory so the build info can point at it;
// the caller runs the returned release func when the build call returned.
func buildGeometries(input *metadata.BuildInput) (*C.VkAccelerationStructureGeometryKHR, uint32, func(), error) {
	var geometries []C.VkAccelerationStructureGeometryKHR
	if input.Kind == metadata.AccelerationStructureTopLevel {
		if input.Instances == nil {
			return nil, 0, nil, fmt.Errorf("top level build input carries no instance geometry")
		}
		var geometry C.VkAccelerationStructureGeometryKHR
		geometry.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR
		geometry.geometryType = C.VK_GEOMETRY_TYPE_INSTANCES_KHR
		geometry.flags = C.VK_GEOMETRY_OPAQUE_BIT_KHR
		instances := (*C.VkAccelerationStructureGeometryInstancesDataKHR)(unsafe.Pointer(&geometry.geometry))
		instances.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_INSTANCES_DATA_KHR
		instances.arrayOfPointers = 0
		setDeviceAddressConst(&instances.data, input.Instances.InstanceBuffer)
		geometries = append(geometries, geometry)
	} else {
		if len(input.Triangles) == 0 {
			return nil, 0, nil, fmt.Errorf("bottom level build input carries no triangle geometry")
		}
		for _, triangles := range input.Triangles {
			var geometry C.VkAccelerationStructureGeometryKHR
			geometry.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR
			geometry.geometryType = C.VK_GEOMETRY_TYPE_TRIANGLES_KHR
			if triangles.Opaque {
				geometry.flags = C.VK_GEOMETRY_OPAQUE_BIT_KHR
			}
			data := (*C.VkAccelerationStructureGeometryTrianglesDataKHR)(unsafe.Pointer(&geometry.geometry))
			data.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_TRIANGLES_DATA_KHR
			data.vertexFormat = C.VK_FORMAT_R32G32B32_SFLOAT
			setDeviceAddressConst(&data.vertexData, triangles.VertexBuffer)
			data.vertexStride = C.VkDeviceSize(triangles.VertexStride)
			data.maxVertex = C.uint32_t(triangles.MaxVertex)
			data.indexType = C.VK_INDEX_TYPE_UINT32
			setDeviceAddressConst(&data.indexData, triangles.IndexBuffer)
			setDeviceAddressConst(&data.transformData, triangles.TransformBuffer)
			geometries = append(geometries, geometry)
		}
	}

	block := C.malloc(C.size_t(len(geometries)) * C.sizeof_VkAccelerationStructureGeometryKHR)
	copy(unsafe.Slice((*C.VkAccelerationStructureGeometryKHR)(block), len(geometries)), geometries)
	return (*C.VkAccelerationStructureGeometryKHR)(block), uint32(len(geometries)), func() { C.free(block) }, nil
}

func AccelerationStructureBuildSizes(context *VulkanContext, input *metadata.BuildInput, primitiveCounts []uint32) (*metadata.BuildSizes, error) {
	geometries, geometryCount, release, err := buildGeometries(input)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	defer release()

	var buildInfo C.VkAccelerationStructureBuildGeometryInfoKHR
	buildInfo.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR
	buildInfo._type = accelerationStructureType(input.Kind)
	buildInfo.flags = buildFlags(input.Flags)
	buildInfo.mode = C.VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR
	buildInfo.geometryCount = C.uint32_t(geometryCount)
	buildInfo.pGeometries = geometries

	var sizeInfo C.VkAccelerationStructureBuildSizesInfoKHR
	sizeInfo.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_SIZES_INFO_KHR
	C.call_vkGetAccelerationStructureBuildSizesKHR(
		context.procs.getBuildSizes,
		deviceC(context.Device.LogicalDevice),
		C.VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR,
		&buildInfo,
		(*C.uint32_t)(unsafe.Pointer(&primitiveCounts[0])),
		&sizeInfo)

	return &metadata.BuildSizes{
		AccelerationStructureSize: uint64(sizeInfo.accelerationStructureSize),
		BuildScratchSize:          uint64(sizeInfo.buildScratchSize),
		UpdateScratchSize:         uint64(sizeInfo.updateScratchSize),
	}, nil
}

// AccelerationStructureCreate makes the structure handle and the buffer that
// exclusively backs it. The structure is unusable until it has been built.
func AccelerationStructureCreate(context *VulkanContext, kind metadata.AccelerationStructureKind, size uint64) (*metadata.AccelerationStructure, error) {
	backing, err := BufferCreate(context, metadata.BufferUsageAccelerationStructureStorage, size, nil)
	if err != nil {
		return nil, err
	}

	var createInfo C.VkAccelerationStructureCreateInfoKHR
	createInfo.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR
	createInfo.buffer = bufferC(backing.InternalData.(*VulkanBuffer).Handle)
	createInfo.size = C.VkDeviceSize(size)
	createInfo._type = accelerationStructureType(kind)

	var handle C.VkAccelerationStructureKHR
	if res := vk.Result(C.call_vkCreateAccelerationStructureKHR(
		context.procs.createStructure,
		deviceC(context.Device.LogicalDevice),
		&createInfo,
		&handle)); res != vk.Success {
		err := fmt.Errorf("failed to create %s acceleration structure with error `%s`", kind, VulkanResultString(res, true))
		core.LogError(err.Error())
		BufferDestroy(context, backing)
		return nil, err
	}

	var addressInfo C.VkAccelerationStructureDeviceAddressInfoKHR
	addressInfo.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_DEVICE_ADDRESS_INFO_KHR
	addressInfo.accelerationStructure = handle
	deviceAddress := C.call_vkGetAccelerationStructureDeviceAddressKHR(
		context.procs.getStructureAddress,
		deviceC(context.Device.LogicalDevice),
		&addressInfo)

	return &metadata.AccelerationStructure{
		ID:            core.GenerateUUID(),
		Kind:          kind,
		DeviceAddress: uint64(deviceAddress),
		Buffer:        backing,
		InternalData:  &VulkanAccelerationStructure{Handle: accelerationStructureFromC(handle)},
	}, nil
}

func AccelerationStructureDestroy(context *VulkanContext, structure *metadata.AccelerationStructure) {
	if structure == nil || structure.InternalData == nil {
		return
	}
	internal := structure.InternalData.(*VulkanAccelerationStructure)
	C.call_vkDestroyAccelerationStructureKHR(
		context.procs.destroyStructure,
		deviceC(context.Device.LogicalDevice),
		accelerationStructureC(internal.Handle))
	structure.InternalData = nil

	BufferDestroy(context, structure.Buffer)
	structure.Buffer = nil
	structure.DeviceAddress = 0
}

// AccelerationStructureBuild executes one build command and blocks until it
// finishes. The strategy resolved at device creation decides whether the
// build runs on the host or through a single use command buffer.
func AccelerationStructureBuild(context *VulkanContext, structure *metadata.AccelerationStructure, input *metadata.BuildInput, ranges []metadata.BuildRange, scratch *metadata.Buffer) error {
	geometries, geometryCount, release, err := buildGeometries(input)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	defer release()
	if uint32(len(ranges)) != input.GeometryCount() {
		err := fmt.Errorf("build range count %d does not match geometry count %d", len(ranges), input.GeometryCount())
		core.LogError(err.Error())
		return err
	}

	var buildInfo C.VkAccelerationStructureBuildGeometryInfoKHR
	buildInfo.sType = C.VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR
	buildInfo._type = accelerationStructureType(input.Kind)
	buildInfo.flags = buildFlags(input.Flags)
	buildInfo.mode = C.VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR
	buildInfo.dstAccelerationStructure = accelerationStructureC(structure.InternalData.(*VulkanAccelerationStructure).Handle)
	buildInfo.geometryCount = C.uint32_t(geometryCount)
	buildInfo.pGeometries = geometries
	*(*C.VkDeviceAddress)(unsafe.Pointer(&buildInfo.scratchData)) = C.VkDeviceAddress(scratch.DeviceAddress)

	// One build info, so one pointer to the per-geometry range array.
	rangeBlock := C.malloc(C.size_t(len(ranges)) * C.sizeof_VkAccelerationStructureBuildRangeInfoKHR)
	defer C.free(rangeBlock)
	rangeInfos := unsafe.Slice((*C.VkAccelerationStructureBuildRangeInfoKHR)(rangeBlock), len(ranges))
	for i, r := range ranges {
		rangeInfos[i] = C.VkAccelerationStructureBuildRangeInfoKHR{
			primitiveCount:  C.uint32_t(r.PrimitiveCount),
			primitiveOffset: C.uint32_t(r.PrimitiveOffset),
			firstVertex:     C.uint32_t(r.FirstVertex),
			transformOffset: C.uint32_t(r.TransformOffset),
		}
	}
	rangePointers := (**C.VkAccelerationStructureBuildRangeInfoKHR)(C.malloc(C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(rangePointers))
	*rangePointers = (*C.VkAccelerationStructureBuildRangeInfoKHR)(rangeBlock)

	if context.BuildStrategy == BuildStrategyHost {
		if res := vk.Result(C.call_vkBuildAccelerationStructuresKHR(
			context.procs.buildStructures,
			deviceC(context.Device.LogicalDevice),
			1,
			&buildInfo,
			rangePointers)); res != vk.Success {
			err := fmt.Errorf("failed to build %s acceleration structure on the host with error `%s`", structure.Kind, VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		return nil
	}

	commandBuffer, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	C.call_vkCmdBuildAccelerationStructuresKHR(
		context.procs.cmdBuildStructures,
		commandBufferC(commandBuffer.Handle),
		1,
		&buildInfo,
		rangePointers)
	return commandBuffer.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue)
}

// rayPipelineStage pairs a compiled shader module with its stage bit; the
// entry point of every stage is main.
type rayPipelineStage struct {
	stage  vk.ShaderStageFlagBits
	module vk.ShaderModule
}

func shaderGroupTypeC(kind metadata.ShaderGroupKind) C.int32_t {
	if kind == metadata.ShaderGroupTrianglesHit {
		return C.VK_RAY_TRACING_SHADER_GROUP_TYPE_TRIANGLES_HIT_GROUP_KHR
	}
	return C.VK_RAY_TRACING_SHADER_GROUP_TYPE_GENERAL_KHR
}

func createRayTracingPipeline(context *VulkanContext, stages []rayPipelineStage, groups []*metadata.ShaderGroup, layout vk.PipelineLayout, maxRecursionDepth uint32) (vk.Pipeline, error) {
	entryPoint := C.CString("main")
	defer C.free(unsafe.Pointer(entryPoint))

	stageBlock := C.malloc(C.size_t(len(stages)) * C.sizeof_VkPipelineShaderStageCreateInfo)
	defer C.free(stageBlock)
	stageInfos := unsafe.Slice((*C.VkPipelineShaderStageCreateInfo)(stageBlock), len(stages))
	for i, stage := range stages {
		stageInfos[i] = C.VkPipelineShaderStageCreateInfo{
			sType:  C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO,
			stage:  C.VkFlags(stage.stage),
			module: shaderModuleC(stage.module),
			pName:  entryPoint,
		}
	}

	groupBlock := C.malloc(C.size_t(len(groups)) * C.sizeof_VkRayTracingShaderGroupCreateInfoKHR)
	defer C.free(groupBlock)
	groupInfos := unsafe.Slice((*C.VkRayTracingShaderGroupCreateInfoKHR)(groupBlock), len(groups))
	for i, group := range groups {
		groupInfos[i] = C.VkRayTracingShaderGroupCreateInfoKHR{
			sType:              C.VK_STRUCTURE_TYPE_RAY_TRACING_SHADER_GROUP_CREATE_INFO_KHR,
			_type:              shaderGroupTypeC(group.Kind),
			generalShader:      C.uint32_t(group.General),
			closestHitShader:   C.uint32_t(group.ClosestHit),
			anyHitShader:       C.uint32_t(group.AnyHit),
			intersectionShader: C.uint32_t(group.Intersection),
		}
	}

	var createInfo C.VkRayTracingPipelineCreateInfoKHR
	createInfo.sType = C.VK_STRUCTURE_TYPE_RAY_TRACING_PIPELINE_CREATE_INFO_KHR
	createInfo.stageCount = C.uint32_t(len(stages))
	createInfo.pStages = (*C.VkPipelineShaderStageCreateInfo)(stageBlock)
	createInfo.groupCount = C.uint32_t(len(groups))
	createInfo.pGroups = (*C.VkRayTracingShaderGroupCreateInfoKHR)(groupBlock)
	createInfo.maxPipelineRayRecursionDepth = C.uint32_t(maxRecursionDepth)
	createInfo.layout = pipelineLayoutC(layout)

	var pipeline C.VkPipeline
	if res := vk.Result(C.call_vkCreateRayTracingPipelinesKHR(
		context.procs.createPipelines,
		deviceC(context.Device.LogicalDevice),
		1,
		&createInfo,
		&pipeline)); res != vk.Success {
		err := fmt.Errorf("failed to create ray tracing pipeline with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullPipeline, err
	}
	return pipelineFromC(pipeline), nil
}

// rayTracingShaderGroupHandles reads the pipeline's handle block and widens
// each handle to the aligned record stride expected by the binding table.
func rayTracingShaderGroupHandles(context *VulkanContext, pipeline vk.Pipeline, groupCount uint32) ([]byte, error) {
	handleSize := context.Capabilities.ShaderGroupHandleSize
	handleSizeAligned := context.Capabilities.HandleSizeAligned()

	packed := make([]byte, handleSize*groupCount)
	if res := vk.Result(C.call_vkGetRayTracingShaderGroupHandlesKHR(
		context.procs.getGroupHandles,
		deviceC(context.Device.LogicalDevice),
		pipelineC(pipeline),
		0,
		C.uint32_t(groupCount),
		C.size_t(len(packed)),
		unsafe.Pointer(&packed[0]))); res != vk.Success {
		err := fmt.Errorf("failed to get shader group handles with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	aligned := make([]byte, handleSizeAligned*groupCount)
	for group := uint32(0); group < groupCount; group++ {
		copy(aligned[group*handleSizeAligned:], packed[group*handleSize:(group+1)*handleSize])
	}
	return aligned, nil
}

func stridedRegion(region metadata.BindingTableRegion) C.VkStridedDeviceAddressRegionKHR {
	return C.VkStridedDeviceAddressRegionKHR{
		deviceAddress: C.VkDeviceAddress(region.Region.DeviceAddress),
		stride:        C.VkDeviceSize(region.Region.Stride),
		size:          C.VkDeviceSize(region.Region.Size),
	}
}

func cmdTraceRays(context *VulkanContext, commandBuffer vk.CommandBuffer, table *metadata.ShaderBindingTable, extent metadata.Extent) {
	raygen := stridedRegion(table.Raygen)
	miss := stridedRegion(table.Miss)
	hit := stridedRegion(table.Hit)
	callable := stridedRegion(table.Callable)
	C.call_vkCmdTraceRaysKHR(
		context.procs.cmdTraceRays,
		commandBufferC(commandBuffer),
		&raygen, &miss, &hit, &callable,
		C.uint32_t(extent.Width), C.uint32_t(extent.Height), 1)
}
