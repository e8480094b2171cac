package systems

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

/**
 * @brief Assembles the ordered shader stage and shader group lists the
 * pipeline is created from. The registry never reorders or deduplicates:
 * ordinals are insertion order, and the binding table slices the handle
 * block by exactly these ordinals.
 */
type ShaderGroupRegistry struct {
	stages []*metadata.ShaderStage
	groups []*metadata.ShaderGroup
}

func NewShaderGroupRegistry() *ShaderGroupRegistry {
	return &ShaderGroupRegistry{}
}

// AddStage appends a shader stage and returns its stage ordinal.
func (r *ShaderGroupRegistry) AddStage(kind metadata.ShaderStageKind, name string, code []byte) uint32 {
	r.stages = append(r.stages, &metadata.ShaderStage{
		Kind: kind,
		Name: name,
		Code: code,
	})
	return uint32(len(r.stages) - 1)
}

// DeclareGeneralGroup appends a general group (raygen, miss or callable)
// referencing the given stage and returns its group ordinal.
func (r *ShaderGroupRegistry) DeclareGeneralGroup(stageOrdinal uint32) uint32 {
	group := &metadata.ShaderGroup{
		Kind:         metadata.ShaderGroupGeneral,
		General:      stageOrdinal,
		ClosestHit:   metadata.ShaderUnused,
		AnyHit:       metadata.ShaderUnused,
		Intersection: metadata.ShaderUnused,
		Ordinal:      uint32(len(r.groups)),
	}
	r.groups = append(r.groups, group)
	return group.Ordinal
}

// DeclareHitGroup appends a triangles hit group with the given closest-hit
// stage and returns its group ordinal.
func (r *ShaderGroupRegistry) DeclareHitGroup(closestHitOrdinal uint32) uint32 {
	group := &metadata.ShaderGroup{
		Kind:         metadata.ShaderGroupTrianglesHit,
		General:      metadata.ShaderUnused,
		ClosestHit:   closestHitOrdinal,
		AnyHit:       metadata.ShaderUnused,
		Intersection: metadata.ShaderUnused,
		Ordinal:      uint32(len(r.groups)),
	}
	r.groups = append(r.groups, group)
	return group.Ordinal
}

func (r *ShaderGroupRegistry) Stages() []*metadata.ShaderStage {
	return r.stages
}

func (r *ShaderGroupRegistry) Groups() []*metadata.ShaderGroup {
	return r.groups
}

func (r *ShaderGroupRegistry) GroupCount() uint32 {
	return uint32(len(r.groups))
}

/**
 * @brief A ShaderCatalog hands out the pre-compiled shader binaries by
 * category. Binary contents are opaque here.
 */
type ShaderCatalog interface {
	Raygen() ([]byte, error)
	Miss() ([]byte, error)
	ClosestHit() ([]byte, error)
	// Callable returns the binary of callable shader i, i in [0, objectCount).
	Callable(index uint32) ([]byte, error)
}

// RegisterScenePipeline fills the registry in the fixed order the binding
// table depends on: raygen, miss, hit, then one callable per object.
func RegisterScenePipeline(registry *ShaderGroupRegistry, catalog ShaderCatalog, objectCount uint32) error {
	raygen, err := catalog.Raygen()
	if err != nil {
		core.LogError("failed to load raygen shader")
		return err
	}
	registry.DeclareGeneralGroup(registry.AddStage(metadata.ShaderStageRaygen, "raygen", raygen))

	miss, err := catalog.Miss()
	if err != nil {
		core.LogError("failed to load miss shader")
		return err
	}
	registry.DeclareGeneralGroup(registry.AddStage(metadata.ShaderStageMiss, "miss", miss))

	closestHit, err := catalog.ClosestHit()
	if err != nil {
		core.LogError("failed to load closest hit shader")
		return err
	}
	registry.DeclareHitGroup(registry.AddStage(metadata.ShaderStageClosestHit, "closesthit", closestHit))

	// The closest hit shader calls callable shader i for geometry i, so
	// there is one callable stage and group per rendered object.
	for i := uint32(0); i < objectCount; i++ {
		callable, err := catalog.Callable(i)
		if err != nil {
			core.LogError("failed to load callable shader %d", i)
			return err
		}
		name := fmt.Sprintf("callable%d", i+1)
		registry.DeclareGeneralGroup(registry.AddStage(metadata.ShaderStageCallable, name, callable))
	}

	return registry.Validate(objectCount)
}

// Validate checks the ordinal contract: raygen=0, miss=1, hit=2,
// callables occupy [3, 3+objectCount).
func (r *ShaderGroupRegistry) Validate(objectCount uint32) error {
	if got, want := r.GroupCount(), metadata.GroupOrdinalFirstCallable+objectCount; got != want {
		return fmt.Errorf("shader group count is %d, want %d", got, want)
	}
	for i, group := range r.groups {
		if group.Ordinal != uint32(i) {
			return fmt.Errorf("group %d carries ordinal %d", i, group.Ordinal)
		}
	}
	if r.groups[metadata.GroupOrdinalRaygen].Kind != metadata.ShaderGroupGeneral ||
		r.stages[r.groups[metadata.GroupOrdinalRaygen].General].Kind != metadata.ShaderStageRaygen {
		return fmt.Errorf("group %d is not the raygen group", metadata.GroupOrdinalRaygen)
	}
	if r.stages[r.groups[metadata.GroupOrdinalMiss].General].Kind != metadata.ShaderStageMiss {
		return fmt.Errorf("group %d is not the miss group", metadata.GroupOrdinalMiss)
	}
	hit := r.groups[metadata.GroupOrdinalHit]
	if hit.Kind != metadata.ShaderGroupTrianglesHit || hit.ClosestHit == metadata.ShaderUnused {
		return fmt.Errorf("group %d is not a triangles hit group", metadata.GroupOrdinalHit)
	}
	for i := uint32(0); i < objectCount; i++ {
		group := r.groups[metadata.GroupOrdinalFirstCallable+i]
		if group.Kind != metadata.ShaderGroupGeneral ||
			r.stages[group.General].Kind != metadata.ShaderStageCallable {
			return fmt.Errorf("group %d is not a callable group", metadata.GroupOrdinalFirstCallable+i)
		}
	}
	return nil
}
