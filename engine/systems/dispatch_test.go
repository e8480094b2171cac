package systems

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer/components"
	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// testRig assembles the full preparation chain against the headless
// device: scene, both acceleration structures, pipeline, binding table,
// frame resources and the dispatcher.
type testRig struct {
	backend    *headless.Backend
	geometry   *GeometrySystem
	structures *AccelerationSystem
	scene      *SceneGeometry
	blas       *metadata.AccelerationStructure
	tlas       *metadata.AccelerationStructure
	registry   *ShaderGroupRegistry
	table      *metadata.ShaderBindingTable
	frames     *FrameResourceManager
	camera     *components.Camera
	dispatcher *DispatchOrchestrator
}

func newTestRig(t *testing.T, config headless.Config, objectCount uint32, extent metadata.Extent) *testRig {
	t.Helper()

	rig := &testRig{backend: headless.New(config)}
	if err := rig.backend.Initialize("test", extent.Width, extent.Height); err != nil {
		t.Fatal(err)
	}

	rig.geometry = NewGeometrySystem(rig.backend)
	rig.structures = NewAccelerationSystem(rig.backend)

	var err error
	if rig.scene, err = rig.geometry.BuildScene(objectCount); err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	if rig.blas, err = rig.structures.BuildBottomLevel(rig.scene); err != nil {
		t.Fatalf("BuildBottomLevel failed: %v", err)
	}
	if rig.tlas, err = rig.structures.BuildTopLevel(rig.blas); err != nil {
		t.Fatalf("BuildTopLevel failed: %v", err)
	}

	rig.registry = NewShaderGroupRegistry()
	if err = RegisterScenePipeline(rig.registry, newStaticCatalog(objectCount), objectCount); err != nil {
		t.Fatalf("RegisterScenePipeline failed: %v", err)
	}
	if err = rig.backend.PipelineCreate(rig.registry.Stages(), rig.registry.Groups(),
		rig.backend.Capabilities().MaxRayRecursionDepth); err != nil {
		t.Fatalf("PipelineCreate failed: %v", err)
	}
	if rig.table, err = NewBindingTableBuilder(rig.backend).Build(rig.registry, objectCount); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if rig.frames, err = NewFrameResourceManager(rig.backend, rig.tlas, rig.scene, extent); err != nil {
		t.Fatalf("NewFrameResourceManager failed: %v", err)
	}

	rig.camera = components.NewCamera()
	rig.camera.SetPosition(math.NewVec3(0.0, 0.0, -10.0))
	rig.camera.SetPerspective(60.0, float32(extent.Width)/float32(extent.Height), 0.1, 512.0)

	rig.dispatcher = NewDispatchOrchestrator(rig.backend, rig.frames, rig.table, rig.camera)
	return rig
}

func (rig *testRig) teardown() {
	rig.frames.Destroy()
	NewBindingTableBuilder(rig.backend).Destroy(rig.table)
	rig.backend.PipelineDestroy()
	rig.structures.Destroy(rig.tlas)
	rig.structures.Destroy(rig.blas)
	rig.geometry.Destroy(rig.scene)
}

func slotsOf(ops []headless.Op, kind string) []uint32 {
	var slots []uint32
	for _, op := range ops {
		if op.Kind == kind {
			slots = append(slots, op.Slot)
		}
	}
	return slots
}

func TestDrawFrameCyclesSlots(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 3}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	for i := 0; i < 6; i++ {
		if got, want := rig.dispatcher.CurrentSlot(), uint32(i%3); got != want {
			t.Fatalf("frame %d targets slot %d, want %d", i, got, want)
		}
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
	}

	want := []uint32{0, 1, 2, 0, 1, 2}
	got := slotsOf(rig.backend.Ops(), "submit")
	if len(got) != len(want) {
		t.Fatalf("%d submissions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("submission %d targeted slot %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDrawFrameCommandOrder(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	before := len(rig.backend.Ops())
	if err := rig.dispatcher.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame failed: %v", err)
	}

	want := []string{
		"fence-wait", "frame-begin", "fence-reset",
		"bind-pipeline", "bind-descriptor-set",
		"trace-rays 800x600", "copy-output", "frame-end", "submit",
	}
	ops := rig.backend.Ops()[before:]
	if len(ops) != len(want) {
		t.Fatalf("%d operations recorded, want %d", len(ops), len(want))
	}
	for i, op := range ops {
		if op.Kind != want[i] {
			t.Errorf("operation %d = %q, want %q", i, op.Kind, want[i])
		}
		if op.Slot != 0 {
			t.Errorf("operation %d targeted slot %d", i, op.Slot)
		}
	}
}

func TestDrawFrameRecoversFromFailedAcquire(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 3}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	rig.backend.FailNextFrameBegin(core.ErrSwapchainOutOfDate)
	if err := rig.dispatcher.DrawFrame(); !errors.Is(err, core.ErrSwapchainOutOfDate) {
		t.Fatalf("DrawFrame returned %v, want %v", err, core.ErrSwapchainOutOfDate)
	}
	if got := rig.dispatcher.CurrentSlot(); got != 0 {
		t.Fatalf("failed frame advanced the ring to slot %d", got)
	}

	// The failed acquire submitted nothing, so the slot's fence must
	// still be satisfied when the same slot is drawn again.
	for i := 0; i < 3; i++ {
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame %d after failed acquire: %v", i, err)
		}
	}
}

func TestDrawFrameRefreshesUniforms(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	if err := rig.dispatcher.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame failed: %v", err)
	}

	ubo := rig.frames.Frame(0).UniformBuffer.Mapped
	if len(ubo) != metadata.UniformDataSize {
		t.Fatalf("uniform mapping is %d bytes", len(ubo))
	}
	if bytes.Equal(ubo, make([]byte, metadata.UniformDataSize)) {
		t.Error("uniform buffer was not written")
	}
}

func TestPausedSkipsUniformRefreshUntilCameraMoves(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	rig.dispatcher.Paused = true
	rig.camera.ConsumeUpdated()

	zero := make([]byte, metadata.UniformDataSize)
	if err := rig.dispatcher.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame failed: %v", err)
	}
	if !bytes.Equal(rig.frames.Frame(0).UniformBuffer.Mapped, zero) {
		t.Fatal("paused frame refreshed the uniforms without camera motion")
	}

	rig.camera.SetPosition(math.NewVec3(0.0, 1.0, -10.0))
	if err := rig.dispatcher.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame failed: %v", err)
	}
	if bytes.Equal(rig.frames.Frame(1).UniformBuffer.Mapped, zero) {
		t.Fatal("camera motion did not refresh the uniforms while paused")
	}
}

func TestSlotReuseWaitsForItsOwnSubmission(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 2}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	// Five frames across two slots. The headless device fails any wait on
	// a fence whose submission never retired, so a ring that reused a slot
	// without waiting on its own earlier submission could not survive this.
	for i := 0; i < 5; i++ {
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
	}

	waits := slotsOf(rig.backend.Ops(), "fence-wait")
	submits := slotsOf(rig.backend.Ops(), "submit")
	for i := 2; i < len(waits); i++ {
		if waits[i] != submits[i-2] {
			t.Errorf("wait %d targeted slot %d, submission two frames earlier targeted %d", i, waits[i], submits[i-2])
		}
	}
}

func TestTeardownReleasesEverything(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})

	for i := 0; i < 4; i++ {
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
	}
	rig.teardown()

	if got := rig.backend.LiveBuffers(); got != 0 {
		t.Errorf("%d buffers still live after teardown", got)
	}
	if got := rig.backend.LiveImages(); got != 0 {
		t.Errorf("%d images still live after teardown", got)
	}
}
