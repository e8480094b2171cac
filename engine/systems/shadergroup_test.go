package systems

import (
	"fmt"
	"testing"

	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// staticCatalog serves tiny fake SPIR-V blobs, each tagged so tests can
// tell the binaries apart.
type staticCatalog struct {
	callableCount uint32
	failCallable  int
}

func spv(tag byte) []byte {
	// SPIR-V magic, little endian, plus a tag byte.
	return []byte{0x03, 0x02, 0x23, 0x07, tag}
}

func (c *staticCatalog) Raygen() ([]byte, error)     { return spv(0x10), nil }
func (c *staticCatalog) Miss() ([]byte, error)       { return spv(0x20), nil }
func (c *staticCatalog) ClosestHit() ([]byte, error) { return spv(0x30), nil }

func (c *staticCatalog) Callable(index uint32) ([]byte, error) {
	if c.failCallable >= 0 && uint32(c.failCallable) == index {
		return nil, fmt.Errorf("no such shader")
	}
	if index >= c.callableCount {
		return nil, fmt.Errorf("callable %d out of range", index)
	}
	return spv(0x40 + byte(index)), nil
}

func newStaticCatalog(callableCount uint32) *staticCatalog {
	return &staticCatalog{callableCount: callableCount, failCallable: -1}
}

func TestRegisterScenePipelineOrdinals(t *testing.T) {
	for _, objectCount := range []uint32{1, 3, 6} {
		registry := NewShaderGroupRegistry()
		if err := RegisterScenePipeline(registry, newStaticCatalog(objectCount), objectCount); err != nil {
			t.Fatalf("objectCount=%d: RegisterScenePipeline failed: %v", objectCount, err)
		}

		if got, want := registry.GroupCount(), 3+objectCount; got != want {
			t.Errorf("objectCount=%d: group count = %d, want %d", objectCount, got, want)
		}
		groups := registry.Groups()
		stages := registry.Stages()

		if stages[groups[metadata.GroupOrdinalRaygen].General].Kind != metadata.ShaderStageRaygen {
			t.Errorf("group 0 does not reference the raygen stage")
		}
		if stages[groups[metadata.GroupOrdinalMiss].General].Kind != metadata.ShaderStageMiss {
			t.Errorf("group 1 does not reference the miss stage")
		}
		if groups[metadata.GroupOrdinalHit].Kind != metadata.ShaderGroupTrianglesHit {
			t.Errorf("group 2 is not a triangles hit group")
		}
		if groups[metadata.GroupOrdinalHit].General != metadata.ShaderUnused {
			t.Errorf("hit group references a general stage")
		}
		for i := uint32(0); i < objectCount; i++ {
			group := groups[metadata.GroupOrdinalFirstCallable+i]
			stage := stages[group.General]
			if stage.Kind != metadata.ShaderStageCallable {
				t.Errorf("group %d is not a callable group", group.Ordinal)
			}
			if want := fmt.Sprintf("callable%d", i+1); stage.Name != want {
				t.Errorf("callable stage %d named %q, want %q", i, stage.Name, want)
			}
		}
	}
}

func TestRegisterScenePipelineCallableFailure(t *testing.T) {
	catalog := newStaticCatalog(3)
	catalog.failCallable = 1

	registry := NewShaderGroupRegistry()
	if err := RegisterScenePipeline(registry, catalog, 3); err == nil {
		t.Fatal("expected an error when a callable shader is missing")
	}
}

func TestValidateRejectsWrongShape(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *ShaderGroupRegistry)
	}{
		{
			name: "missing callables",
			build: func(r *ShaderGroupRegistry) {
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageRaygen, "raygen", spv(1)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageMiss, "miss", spv(2)))
				r.DeclareHitGroup(r.AddStage(metadata.ShaderStageClosestHit, "closesthit", spv(3)))
			},
		},
		{
			name: "miss and raygen swapped",
			build: func(r *ShaderGroupRegistry) {
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageMiss, "miss", spv(2)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageRaygen, "raygen", spv(1)))
				r.DeclareHitGroup(r.AddStage(metadata.ShaderStageClosestHit, "closesthit", spv(3)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageCallable, "callable1", spv(4)))
			},
		},
		{
			name: "general group in the hit slot",
			build: func(r *ShaderGroupRegistry) {
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageRaygen, "raygen", spv(1)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageMiss, "miss", spv(2)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageClosestHit, "closesthit", spv(3)))
				r.DeclareGeneralGroup(r.AddStage(metadata.ShaderStageCallable, "callable1", spv(4)))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewShaderGroupRegistry()
			tt.build(registry)
			if err := registry.Validate(1); err == nil {
				t.Error("Validate accepted a malformed registry")
			}
		})
	}
}

func TestDeclareGroupsAssignInsertionOrdinals(t *testing.T) {
	registry := NewShaderGroupRegistry()
	first := registry.DeclareGeneralGroup(registry.AddStage(metadata.ShaderStageRaygen, "raygen", spv(1)))
	second := registry.DeclareHitGroup(registry.AddStage(metadata.ShaderStageClosestHit, "closesthit", spv(2)))
	if first != 0 || second != 1 {
		t.Errorf("ordinals = %d, %d, want 0, 1", first, second)
	}
}
