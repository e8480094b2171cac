package systems

import (
	"testing"

	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

func TestBottomLevelBuildRanges(t *testing.T) {
	for _, objectCount := range []int{1, 3, 6} {
		records := make([]metadata.GeometryRecord, objectCount)
		for i := range records {
			records[i] = metadata.GeometryRecord{
				TriangleCount:   1,
				TransformOffset: uint32(i) * math.TransformMatrixSize,
			}
		}

		ranges := BottomLevelBuildRanges(records)
		if got := len(ranges); got != objectCount {
			t.Fatalf("objectCount=%d: %d build ranges", objectCount, got)
		}
		for i, r := range ranges {
			if r.PrimitiveCount != 1 {
				t.Errorf("range %d primitive count = %d, want 1", i, r.PrimitiveCount)
			}
			if r.PrimitiveOffset != 0 || r.FirstVertex != 0 {
				t.Errorf("range %d carries offsets %d/%d, want 0/0", i, r.PrimitiveOffset, r.FirstVertex)
			}
			if want := uint32(i) * math.TransformMatrixSize; r.TransformOffset != want {
				t.Errorf("range %d transform offset = %d, want %d", i, r.TransformOffset, want)
			}
		}
	}
}

func TestBuildBottomLevel(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)
	as := NewAccelerationSystem(backend)

	scene, err := gs.BuildScene(3)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	defer gs.Destroy(scene)

	blas, err := as.BuildBottomLevel(scene)
	if err != nil {
		t.Fatalf("BuildBottomLevel failed: %v", err)
	}
	defer as.Destroy(blas)

	if blas.Kind != metadata.AccelerationStructureBottomLevel {
		t.Errorf("structure kind = %s", blas.Kind)
	}
	if blas.DeviceAddress == 0 {
		t.Error("structure has no device address")
	}
	if blas.ScratchSize == 0 {
		t.Error("structure reports zero scratch size")
	}

	// Scene buffers plus the structure's backing buffer; the scratch
	// buffer must be gone.
	if got := backend.LiveBuffers(); got != 4 {
		t.Errorf("%d buffers live after the build, want 4", got)
	}
}

func TestBuildBottomLevelRejectsEmptyScene(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	as := NewAccelerationSystem(backend)
	if _, err := as.BuildBottomLevel(&SceneGeometry{}); err == nil {
		t.Fatal("expected an error for an empty scene")
	}
}

func TestBuildTopLevel(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)
	as := NewAccelerationSystem(backend)

	scene, err := gs.BuildScene(3)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	defer gs.Destroy(scene)

	blas, err := as.BuildBottomLevel(scene)
	if err != nil {
		t.Fatalf("BuildBottomLevel failed: %v", err)
	}
	defer as.Destroy(blas)

	tlas, err := as.BuildTopLevel(blas)
	if err != nil {
		t.Fatalf("BuildTopLevel failed: %v", err)
	}
	defer as.Destroy(tlas)

	if tlas.Kind != metadata.AccelerationStructureTopLevel {
		t.Errorf("structure kind = %s", tlas.Kind)
	}

	// Scene buffers plus two structure backings; instance and scratch
	// buffers are transient.
	if got := backend.LiveBuffers(); got != 5 {
		t.Errorf("%d buffers live after both builds, want 5", got)
	}
}

func TestDestroyReleasesStructureBacking(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)
	as := NewAccelerationSystem(backend)

	scene, err := gs.BuildScene(1)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	blas, err := as.BuildBottomLevel(scene)
	if err != nil {
		t.Fatalf("BuildBottomLevel failed: %v", err)
	}

	backing := blas.Buffer.ID
	as.Destroy(blas)
	gs.Destroy(scene)

	if !backend.Destroyed(backing) {
		t.Error("structure backing buffer was not released")
	}
	if got := backend.LiveBuffers(); got != 0 {
		t.Errorf("%d buffers still live after teardown", got)
	}
}
