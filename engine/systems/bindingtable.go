package systems

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

/**
 * @brief Slices the pipeline's flat shader group handle block into the
 * four binding table regions. Table layout, one record per group ordinal:
 *
 *     /-----------\
 *     | raygen    |
 *     |-----------|
 *     | miss      |
 *     |-----------|
 *     | hit       |
 *     |-----------|
 *     | callable0 |
 *     | ...       |
 *     | callableN |
 *     \-----------/
 */
type BindingTableBuilder struct {
	backend renderer.Backend
}

func NewBindingTableBuilder(backend renderer.Backend) *BindingTableBuilder {
	return &BindingTableBuilder{backend: backend}
}

// Build fetches the handle block for the registry's groups and slices it
// into the raygen, miss, hit and callable regions.
func (b *BindingTableBuilder) Build(registry *ShaderGroupRegistry, objectCount uint32) (*metadata.ShaderBindingTable, error) {
	caps := b.backend.Capabilities()
	handleSize := caps.ShaderGroupHandleSize
	handleSizeAligned := caps.HandleSizeAligned()
	groupCount := registry.GroupCount()

	handles, err := b.backend.ShaderGroupHandles(groupCount)
	if err != nil {
		core.LogError("failed to fetch shader group handles")
		return nil, err
	}
	if got, want := uint32(len(handles)), groupCount*handleSizeAligned; got != want {
		err := fmt.Errorf("shader group handle block is %d bytes, want %d", got, want)
		core.LogError(err.Error())
		return nil, err
	}

	table := &metadata.ShaderBindingTable{}
	type regionSpec struct {
		out         *metadata.BindingTableRegion
		firstGroup  uint32
		recordCount uint32
	}
	specs := []regionSpec{
		{&table.Raygen, metadata.GroupOrdinalRaygen, 1},
		{&table.Miss, metadata.GroupOrdinalMiss, 1},
		{&table.Hit, metadata.GroupOrdinalHit, 1},
		{&table.Callable, metadata.GroupOrdinalFirstCallable, objectCount},
	}
	for _, spec := range specs {
		region, err := b.buildRegion(handles, spec.firstGroup, spec.recordCount, handleSize, handleSizeAligned)
		if err != nil {
			return nil, err
		}
		*spec.out = *region
	}

	core.LogDebug("shader binding table built: %d groups, stride %d", groupCount, handleSizeAligned)
	return table, nil
}

// buildRegion allocates one region's backing buffer and copies its
// records out of the handle block. Records are copied one at a time at
// the aligned stride: a single contiguous copy of recordCount*handleSize
// bytes is only correct when the stride equals the handle size, which the
// device's reported alignment does not guarantee.
func (b *BindingTableBuilder) buildRegion(handles []byte, firstGroup, recordCount, handleSize, handleSizeAligned uint32) (*metadata.BindingTableRegion, error) {
	size := uint64(recordCount) * uint64(handleSizeAligned)
	buffer, err := b.backend.BufferCreate(metadata.BufferUsageShaderBindingTable, size, nil)
	if err != nil {
		core.LogError("failed to allocate binding table region buffer")
		return nil, err
	}
	if buffer.Mapped == nil {
		err := fmt.Errorf("binding table region buffer is not host mapped")
		core.LogError(err.Error())
		return nil, err
	}

	for record := uint32(0); record < recordCount; record++ {
		src := (firstGroup + record) * handleSizeAligned
		dst := record * handleSizeAligned
		copy(buffer.Mapped[dst:dst+handleSize], handles[src:src+handleSize])
	}

	return &metadata.BindingTableRegion{
		Buffer:      buffer,
		RecordCount: recordCount,
		Region: metadata.StridedRegion{
			DeviceAddress: buffer.DeviceAddress,
			Stride:        uint64(handleSizeAligned),
			Size:          size,
		},
	}, nil
}

// Destroy releases the four region buffers.
func (b *BindingTableBuilder) Destroy(table *metadata.ShaderBindingTable) {
	if table == nil {
		return
	}
	b.backend.BufferDestroy(table.Raygen.Buffer)
	b.backend.BufferDestroy(table.Miss.Buffer)
	b.backend.BufferDestroy(table.Hit.Buffer)
	b.backend.BufferDestroy(table.Callable.Buffer)
}
