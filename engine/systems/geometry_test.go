package systems

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

func TestBuildSceneRecords(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)

	scene, err := gs.BuildScene(3)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	defer gs.Destroy(scene)

	if got := len(scene.Records); got != 3 {
		t.Fatalf("record count = %d, want 3", got)
	}
	for i, record := range scene.Records {
		if want := uint32(i) * math.TransformMatrixSize; record.TransformOffset != want {
			t.Errorf("record %d transform offset = %d, want %d", i, record.TransformOffset, want)
		}
		if record.TriangleCount != 1 {
			t.Errorf("record %d triangle count = %d, want 1", i, record.TriangleCount)
		}
		if record.MaxVertex != 3 {
			t.Errorf("record %d max vertex = %d, want 3", i, record.MaxVertex)
		}
		if !record.Opaque {
			t.Errorf("record %d is not opaque", i)
		}
		if record.VertexBuffer != scene.VertexBuffer || record.IndexBuffer != scene.IndexBuffer {
			t.Errorf("record %d does not share the scene buffers", i)
		}
	}
}

func TestBuildSceneUploads(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)

	scene, err := gs.BuildScene(3)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	defer gs.Destroy(scene)

	if got, want := scene.VertexBuffer.TotalSize, uint64(3*metadata.VertexSize); got != want {
		t.Errorf("vertex buffer size = %d, want %d", got, want)
	}
	if got, want := scene.IndexBuffer.TotalSize, uint64(3*metadata.IndexSize); got != want {
		t.Errorf("index buffer size = %d, want %d", got, want)
	}
	if got, want := scene.TransformBuffer.TotalSize, uint64(3*math.TransformMatrixSize); got != want {
		t.Errorf("transform buffer size = %d, want %d", got, want)
	}

	// The row is centered on the origin: translations -3, 0, +3.
	for i, wantX := range []float32{-3.0, 0.0, 3.0} {
		offset := i*math.TransformMatrixSize + 3*4
		gotX := gomath.Float32frombits(binary.LittleEndian.Uint32(scene.TransformBuffer.Mapped[offset:]))
		if gotX != wantX {
			t.Errorf("transform %d x translation = %f, want %f", i, gotX, wantX)
		}
	}
}

func TestBuildSceneRejectsZeroObjects(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewGeometrySystem(backend).BuildScene(0); err == nil {
		t.Fatal("expected an error for a zero object count")
	}
}

func TestDestroyReleasesSceneBuffers(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	gs := NewGeometrySystem(backend)

	scene, err := gs.BuildScene(2)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	gs.Destroy(scene)

	if got := backend.LiveBuffers(); got != 0 {
		t.Errorf("%d buffers still live after Destroy", got)
	}
}
