package headless

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

/**
 * @brief Configuration of the in-memory device. Zero fields fall back to
 * defaults resembling a common discrete GPU.
 */
type Config struct {
	FrameCount            uint32
	ShaderGroupHandleSize uint32
	HandleAlignment       uint32
	MaxRayRecursionDepth  uint32
	HostBuildSupported    bool
}

const (
	defaultFrameCount      = 3
	defaultHandleSize      = 32
	defaultHandleAlignment = 64
	defaultRecursionDepth  = 2
)

// One recorded backend operation. Slot is SlotUnused for operations that
// are not tied to a frame slot.
type Op struct {
	Kind string
	Slot uint32
}

const SlotUnused uint32 = 0xFFFFFFFF

type fence struct {
	signaled bool
	// Ring position of the submission this fence guards, for tests that
	// check slot reuse ordering.
	SubmitSerial uint64
}

type descriptorSet struct {
	TopLevelID    string
	OutputImageID string
	UniformID     string
	VertexID      string
	IndexID       string
}

type slotState struct {
	fence         *fence
	descriptors   *descriptorSet
	commandBuffer *commandBuffer
}

type commandBuffer struct {
	recording bool
}

/**
 * @brief A renderer backend with no device behind it. Every operation is
 * bookkeeping: buffers are plain byte slices, builds complete inline, and
 * submissions retire immediately. Resource lifetimes and call ordering
 * are checked strictly, which is the point of running against it.
 */
type Backend struct {
	config       Config
	capabilities metadata.RayTracingCapabilities

	width  uint32
	height uint32

	buffers    map[string]*metadata.Buffer
	images     map[string]*metadata.Image
	structures map[string]*metadata.AccelerationStructure
	destroyed  map[string]bool

	pipelineGroups uint32
	pipelineLive   bool

	slots []*slotState

	nextAddress  uint64
	submitSerial uint64
	ops          []Op

	beginErr error
}

var _ renderer.Backend = (*Backend)(nil)

func New(config Config) *Backend {
	if config.FrameCount == 0 {
		config.FrameCount = defaultFrameCount
	}
	if config.ShaderGroupHandleSize == 0 {
		config.ShaderGroupHandleSize = defaultHandleSize
	}
	if config.HandleAlignment == 0 {
		config.HandleAlignment = defaultHandleAlignment
	}
	if config.MaxRayRecursionDepth == 0 {
		config.MaxRayRecursionDepth = defaultRecursionDepth
	}
	return &Backend{
		config:      config,
		buffers:     make(map[string]*metadata.Buffer),
		images:      make(map[string]*metadata.Image),
		structures:  make(map[string]*metadata.AccelerationStructure),
		destroyed:   make(map[string]bool),
		slots:       make([]*slotState, config.FrameCount),
		nextAddress: 0x1000,
	}
}

func (b *Backend) Initialize(appName string, appWidth, appHeight uint32) error {
	b.width = appWidth
	b.height = appHeight
	b.capabilities = metadata.RayTracingCapabilities{
		HostBuildSupported:         b.config.HostBuildSupported,
		ShaderGroupHandleSize:      b.config.ShaderGroupHandleSize,
		ShaderGroupHandleAlignment: b.config.HandleAlignment,
		MaxRayRecursionDepth:       b.config.MaxRayRecursionDepth,
	}
	core.LogInfo("headless backend initialized for %s at %dx%d", appName, appWidth, appHeight)
	return nil
}

func (b *Backend) Shutdown() error {
	b.record("shutdown", SlotUnused)
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.width = width
	b.height = height
	b.record("resized", SlotUnused)
	return nil
}

func (b *Backend) Capabilities() *metadata.RayTracingCapabilities {
	return &b.capabilities
}

func (b *Backend) FrameCount() uint32 {
	return b.config.FrameCount
}

// BufferCreate allocates a host-backed buffer. Every buffer is mapped;
// there is no device-local memory to stage into.
func (b *Backend) BufferCreate(usage metadata.BufferUsage, size uint64, data []byte) (*metadata.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("func BufferCreate - zero size buffer requested")
	}
	buffer := &metadata.Buffer{
		ID:            core.GenerateUUID(),
		TotalSize:     size,
		Usage:         usage,
		DeviceAddress: b.nextAddress,
		Mapped:        make([]byte, size),
	}
	// Device address spacing mimics a real allocator's alignment.
	b.nextAddress += (size + 0xFF) &^ 0xFF
	copy(buffer.Mapped, data)
	b.buffers[buffer.ID] = buffer
	return buffer, nil
}

func (b *Backend) BufferDestroy(buffer *metadata.Buffer) {
	if buffer == nil {
		return
	}
	delete(b.buffers, buffer.ID)
	b.destroyed[buffer.ID] = true
}

func (b *Backend) AccelerationStructureBuildSizes(input *metadata.BuildInput, primitiveCounts []uint32) (*metadata.BuildSizes, error) {
	if got, want := uint32(len(primitiveCounts)), input.GeometryCount(); got != want {
		return nil, fmt.Errorf("func AccelerationStructureBuildSizes - %d primitive counts for %d geometries", got, want)
	}
	var primitives uint64
	for _, count := range primitiveCounts {
		primitives += uint64(count)
	}
	// Deterministic and roughly shaped like real driver answers.
	return &metadata.BuildSizes{
		AccelerationStructureSize: 256 * (primitives + 1),
		BuildScratchSize:          128 * (primitives + 1),
		UpdateScratchSize:         64 * (primitives + 1),
	}, nil
}

func (b *Backend) AccelerationStructureCreate(kind metadata.AccelerationStructureKind, size uint64) (*metadata.AccelerationStructure, error) {
	backing, err := b.BufferCreate(metadata.BufferUsageAccelerationStructureStorage, size, nil)
	if err != nil {
		return nil, err
	}
	structure := &metadata.AccelerationStructure{
		ID:            core.GenerateUUID(),
		Kind:          kind,
		DeviceAddress: backing.DeviceAddress,
		Buffer:        backing,
	}
	b.structures[structure.ID] = structure
	return structure, nil
}

// AccelerationStructureBuild validates the build command and completes it
// inline. Input buffers must be alive and the scratch buffer large enough
// for the structure's reported requirement.
func (b *Backend) AccelerationStructureBuild(structure *metadata.AccelerationStructure, input *metadata.BuildInput, ranges []metadata.BuildRange, scratch *metadata.Buffer) error {
	if got, want := uint32(len(ranges)), input.GeometryCount(); got != want {
		return fmt.Errorf("func AccelerationStructureBuild - %d build ranges for %d geometries", got, want)
	}
	if scratch == nil || scratch.TotalSize < structure.ScratchSize {
		return fmt.Errorf("func AccelerationStructureBuild - scratch buffer too small")
	}
	if !b.bufferAlive(scratch) {
		return fmt.Errorf("func AccelerationStructureBuild - scratch buffer already destroyed")
	}
	for i, triangles := range input.Triangles {
		if !b.bufferAlive(triangles.VertexBuffer) || !b.bufferAlive(triangles.IndexBuffer) {
			return fmt.Errorf("func AccelerationStructureBuild - geometry %d references a destroyed buffer", i)
		}
		if triangles.TransformBuffer != nil && !b.bufferAlive(triangles.TransformBuffer) {
			return fmt.Errorf("func AccelerationStructureBuild - geometry %d references a destroyed transform buffer", i)
		}
	}
	if input.Instances != nil && !b.bufferAlive(input.Instances.InstanceBuffer) {
		return fmt.Errorf("func AccelerationStructureBuild - instance buffer already destroyed")
	}
	b.record(fmt.Sprintf("build-%s", structure.Kind), SlotUnused)
	return nil
}

func (b *Backend) AccelerationStructureDestroy(structure *metadata.AccelerationStructure) {
	if structure == nil {
		return
	}
	b.BufferDestroy(structure.Buffer)
	delete(b.structures, structure.ID)
	b.destroyed[structure.ID] = true
}

func (b *Backend) PipelineCreate(stages []*metadata.ShaderStage, groups []*metadata.ShaderGroup, maxRecursionDepth uint32) error {
	if maxRecursionDepth > b.capabilities.MaxRayRecursionDepth {
		return fmt.Errorf("func PipelineCreate - recursion depth %d exceeds device limit %d",
			maxRecursionDepth, b.capabilities.MaxRayRecursionDepth)
	}
	if len(stages) == 0 || len(groups) == 0 {
		return fmt.Errorf("func PipelineCreate - empty pipeline")
	}
	for i, group := range groups {
		if group.General != metadata.ShaderUnused && group.General >= uint32(len(stages)) {
			return fmt.Errorf("func PipelineCreate - group %d references missing stage %d", i, group.General)
		}
		if group.ClosestHit != metadata.ShaderUnused && group.ClosestHit >= uint32(len(stages)) {
			return fmt.Errorf("func PipelineCreate - group %d references missing stage %d", i, group.ClosestHit)
		}
	}
	b.pipelineGroups = uint32(len(groups))
	b.pipelineLive = true
	return nil
}

func (b *Backend) PipelineDestroy() {
	b.pipelineLive = false
	b.pipelineGroups = 0
}

// ShaderGroupHandles hands out one deterministic record per group: the
// handle bytes carry the group ordinal, padding up to the aligned stride
// is zero.
func (b *Backend) ShaderGroupHandles(groupCount uint32) ([]byte, error) {
	if !b.pipelineLive {
		return nil, fmt.Errorf("func ShaderGroupHandles - no pipeline")
	}
	if groupCount != b.pipelineGroups {
		return nil, fmt.Errorf("func ShaderGroupHandles - asked for %d groups, pipeline has %d", groupCount, b.pipelineGroups)
	}
	stride := b.capabilities.HandleSizeAligned()
	out := make([]byte, groupCount*stride)
	for group := uint32(0); group < groupCount; group++ {
		record := out[group*stride : group*stride+b.capabilities.ShaderGroupHandleSize]
		for i := range record {
			record[i] = byte(group + 1)
		}
	}
	return out, nil
}

func (b *Backend) StorageImageCreate(extent metadata.Extent) (*metadata.Image, error) {
	if extent.Width == 0 || extent.Height == 0 {
		return nil, fmt.Errorf("func StorageImageCreate - degenerate extent %dx%d", extent.Width, extent.Height)
	}
	image := &metadata.Image{
		ID:     core.GenerateUUID(),
		Width:  extent.Width,
		Height: extent.Height,
	}
	b.images[image.ID] = image
	return image, nil
}

func (b *Backend) StorageImageDestroy(image *metadata.Image) {
	if image == nil {
		return
	}
	delete(b.images, image.ID)
	b.destroyed[image.ID] = true
}

func (b *Backend) FrameResourcesCreate(frame *metadata.FrameContext, tlas *metadata.AccelerationStructure, vertexBuffer, indexBuffer *metadata.Buffer) error {
	if frame.SlotIndex >= b.config.FrameCount {
		return fmt.Errorf("func FrameResourcesCreate - slot %d out of range", frame.SlotIndex)
	}
	if b.slots[frame.SlotIndex] != nil {
		return fmt.Errorf("func FrameResourcesCreate - slot %d already populated", frame.SlotIndex)
	}
	if frame.OutputImage == nil || frame.UniformBuffer == nil {
		return fmt.Errorf("func FrameResourcesCreate - slot %d is missing its image or uniform buffer", frame.SlotIndex)
	}

	slot := &slotState{
		// Fences start signaled so the first wait on a fresh slot passes.
		fence:         &fence{signaled: true},
		commandBuffer: &commandBuffer{},
		descriptors: &descriptorSet{
			TopLevelID:    tlas.ID,
			OutputImageID: frame.OutputImage.ID,
			UniformID:     frame.UniformBuffer.ID,
			VertexID:      vertexBuffer.ID,
			IndexID:       indexBuffer.ID,
		},
	}
	b.slots[frame.SlotIndex] = slot
	frame.InFlightFence = slot.fence
	frame.CommandBuffer = slot.commandBuffer
	frame.DescriptorSet = slot.descriptors
	return nil
}

func (b *Backend) FrameOutputImageBindingUpdate(frame *metadata.FrameContext) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func FrameOutputImageBindingUpdate - slot %d has no resources", frame.SlotIndex)
	}
	if _, alive := b.images[frame.OutputImage.ID]; !alive {
		return fmt.Errorf("func FrameOutputImageBindingUpdate - slot %d image already destroyed", frame.SlotIndex)
	}
	slot.descriptors.OutputImageID = frame.OutputImage.ID
	b.record("descriptor-update", frame.SlotIndex)
	return nil
}

func (b *Backend) FrameResourcesDestroy(frame *metadata.FrameContext) {
	if frame == nil || frame.SlotIndex >= uint32(len(b.slots)) {
		return
	}
	b.slots[frame.SlotIndex] = nil
	frame.InFlightFence = nil
	frame.CommandBuffer = nil
	frame.DescriptorSet = nil
}

// FenceWait fails on an unsignaled fence instead of blocking: every
// submission retires inline here, so an unsignaled fence at wait time
// means the ring skipped that slot's submit and a real device would
// deadlock.
func (b *Backend) FenceWait(frame *metadata.FrameContext, timeoutNs uint64) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func FenceWait - slot %d has no resources", frame.SlotIndex)
	}
	if !slot.fence.signaled {
		return fmt.Errorf("func FenceWait - fence of slot %d is not signaled", frame.SlotIndex)
	}
	b.record("fence-wait", frame.SlotIndex)
	return nil
}

func (b *Backend) FenceReset(frame *metadata.FrameContext) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func FenceReset - slot %d has no resources", frame.SlotIndex)
	}
	slot.fence.signaled = false
	b.record("fence-reset", frame.SlotIndex)
	return nil
}

func (b *Backend) DeviceWaitIdle() error {
	b.record("device-wait-idle", SlotUnused)
	return nil
}

// FailNextFrameBegin makes the next FrameBegin return err without
// acquiring, the way a real swapchain reports an out-of-date surface.
func (b *Backend) FailNextFrameBegin(err error) {
	b.beginErr = err
}

func (b *Backend) FrameBegin(frame *metadata.FrameContext) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func FrameBegin - slot %d has no resources", frame.SlotIndex)
	}
	if b.beginErr != nil {
		err := b.beginErr
		b.beginErr = nil
		return err
	}
	if slot.commandBuffer.recording {
		return fmt.Errorf("func FrameBegin - slot %d is already recording", frame.SlotIndex)
	}
	slot.commandBuffer.recording = true
	b.record("frame-begin", frame.SlotIndex)
	return nil
}

func (b *Backend) BindPipeline(frame *metadata.FrameContext) {
	b.record("bind-pipeline", frame.SlotIndex)
}

func (b *Backend) BindDescriptorSet(frame *metadata.FrameContext) {
	b.record("bind-descriptor-set", frame.SlotIndex)
}

func (b *Backend) TraceRays(frame *metadata.FrameContext, table *metadata.ShaderBindingTable, extent metadata.Extent) {
	b.record(fmt.Sprintf("trace-rays %dx%d", extent.Width, extent.Height), frame.SlotIndex)
}

// CopyOutputToPresent checks the slot's bound image is alive and sized to
// the copy extent, catching a resize that recreated images without
// rebinding them.
func (b *Backend) CopyOutputToPresent(frame *metadata.FrameContext, extent metadata.Extent) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func CopyOutputToPresent - slot %d has no resources", frame.SlotIndex)
	}
	image, alive := b.images[slot.descriptors.OutputImageID]
	if !alive {
		return fmt.Errorf("func CopyOutputToPresent - slot %d output image already destroyed", frame.SlotIndex)
	}
	if image.Width != extent.Width || image.Height != extent.Height {
		return fmt.Errorf("func CopyOutputToPresent - slot %d image is %dx%d, copy extent is %dx%d",
			frame.SlotIndex, image.Width, image.Height, extent.Width, extent.Height)
	}
	b.record("copy-output", frame.SlotIndex)
	return nil
}

func (b *Backend) FrameEnd(frame *metadata.FrameContext) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil || !slot.commandBuffer.recording {
		return fmt.Errorf("func FrameEnd - slot %d is not recording", frame.SlotIndex)
	}
	slot.commandBuffer.recording = false
	b.record("frame-end", frame.SlotIndex)
	return nil
}

func (b *Backend) FrameSubmit(frame *metadata.FrameContext) error {
	slot := b.slots[frame.SlotIndex]
	if slot == nil {
		return fmt.Errorf("func FrameSubmit - slot %d has no resources", frame.SlotIndex)
	}
	if slot.commandBuffer.recording {
		return fmt.Errorf("func FrameSubmit - slot %d is still recording", frame.SlotIndex)
	}
	if slot.fence.signaled {
		return fmt.Errorf("func FrameSubmit - slot %d fence was not reset", frame.SlotIndex)
	}
	b.submitSerial++
	slot.fence.SubmitSerial = b.submitSerial
	slot.fence.signaled = true
	b.record("submit", frame.SlotIndex)
	return nil
}

func (b *Backend) bufferAlive(buffer *metadata.Buffer) bool {
	if buffer == nil {
		return false
	}
	_, alive := b.buffers[buffer.ID]
	return alive
}

func (b *Backend) record(kind string, slot uint32) {
	b.ops = append(b.ops, Op{Kind: kind, Slot: slot})
}

// Ops returns the recorded operation log in call order.
func (b *Backend) Ops() []Op {
	return b.ops
}

// LiveBuffers reports the number of buffers not yet destroyed.
func (b *Backend) LiveBuffers() int {
	return len(b.buffers)
}

// LiveImages reports the number of storage images not yet destroyed.
func (b *Backend) LiveImages() int {
	return len(b.images)
}

// Destroyed reports whether the resource with the given ID was released.
func (b *Backend) Destroyed(id string) bool {
	return b.destroyed[id]
}
