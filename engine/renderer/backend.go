package renderer

import "github.com/spaghettifunk/prisma/engine/renderer/metadata"

// Backend is the ray-tracing-capable device collaborator. Scene
// preparation and dispatch never touch an API handle directly; they
// exchange metadata records with whichever backend is configured.
type Backend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error

	// Capabilities is valid after Initialize and constant afterwards.
	Capabilities() *metadata.RayTracingCapabilities
	// FrameCount is the number of frame-in-flight slots (= swap image count).
	FrameCount() uint32

	BufferCreate(usage metadata.BufferUsage, size uint64, data []byte) (*metadata.Buffer, error)
	BufferDestroy(buffer *metadata.Buffer)

	AccelerationStructureBuildSizes(input *metadata.BuildInput, primitiveCounts []uint32) (*metadata.BuildSizes, error)
	AccelerationStructureCreate(kind metadata.AccelerationStructureKind, size uint64) (*metadata.AccelerationStructure, error)
	// AccelerationStructureBuild executes exactly one build command and blocks
	// until it completes, on the host or through a one-shot command buffer
	// depending on the strategy resolved at Initialize.
	AccelerationStructureBuild(structure *metadata.AccelerationStructure, input *metadata.BuildInput, ranges []metadata.BuildRange, scratch *metadata.Buffer) error
	AccelerationStructureDestroy(structure *metadata.AccelerationStructure)

	PipelineCreate(stages []*metadata.ShaderStage, groups []*metadata.ShaderGroup, maxRecursionDepth uint32) error
	PipelineDestroy()
	// ShaderGroupHandles returns the flat handle block: groupCount records of
	// HandleSizeAligned bytes each.
	ShaderGroupHandles(groupCount uint32) ([]byte, error)

	StorageImageCreate(extent metadata.Extent) (*metadata.Image, error)
	StorageImageDestroy(image *metadata.Image)

	// FrameResourcesCreate allocates the slot's command buffer, fence,
	// uniform buffer mapping and descriptor set bound to
	// {TLAS, output image, UBO, vertex buffer, index buffer}.
	FrameResourcesCreate(frame *metadata.FrameContext, tlas *metadata.AccelerationStructure, vertexBuffer, indexBuffer *metadata.Buffer) error
	// FrameOutputImageBindingUpdate rewrites only the output image binding,
	// leaving every other binding untouched.
	FrameOutputImageBindingUpdate(frame *metadata.FrameContext) error
	FrameResourcesDestroy(frame *metadata.FrameContext)

	FenceWait(frame *metadata.FrameContext, timeoutNs uint64) error
	FenceReset(frame *metadata.FrameContext) error
	DeviceWaitIdle() error

	// Per-frame recording, in call order.
	FrameBegin(frame *metadata.FrameContext) error
	BindPipeline(frame *metadata.FrameContext)
	BindDescriptorSet(frame *metadata.FrameContext)
	TraceRays(frame *metadata.FrameContext, table *metadata.ShaderBindingTable, extent metadata.Extent)
	// CopyOutputToPresent transitions the presentable image to
	// transfer-dst and the output image to transfer-src, copies, then
	// returns them to present-ready and general layouts.
	CopyOutputToPresent(frame *metadata.FrameContext, extent metadata.Extent) error
	FrameEnd(frame *metadata.FrameContext) error
	FrameSubmit(frame *metadata.FrameContext) error
}
