package engine

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/prisma/engine/assets"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// writeShaderDir lays out the minimal SPIR-V binaries the asset manager
// expects for an objectCount-object scene.
func writeShaderDir(t *testing.T, objectCount uint32) string {
	t.Helper()
	dir := t.TempDir()
	names := []string{assets.RaygenFile, assets.MissFile, assets.ClosestHitFile}
	for i := uint32(0); i < objectCount; i++ {
		names = append(names, fmt.Sprintf("callable%d.rcall.spv", i+1))
	}
	for _, name := range names {
		data := make([]byte, 24)
		binary.LittleEndian.PutUint32(data, 0x07230203)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backend = BackendHeadless
	cfg.ShaderDir = writeShaderDir(t, cfg.ObjectCount)

	app, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() {
		if err := app.Shutdown(); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	})
	return app
}

func keyEvent(key uint16) core.EventContext {
	var data core.EventContext
	data.Data.U16[0] = key
	return data
}

func resizeEvent(width, height uint16) core.EventContext {
	var data core.EventContext
	data.Data.U16[0] = width
	data.Data.U16[1] = height
	return data
}

func TestEscapeKeyStopsTheEngine(t *testing.T) {
	app := newTestEngine(t)

	if !app.isRunning {
		t.Fatal("engine not running after Initialize")
	}
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, keyEvent(keyEscape))
	if app.isRunning {
		t.Error("engine still running after escape")
	}
}

func TestSpaceKeyTogglesPause(t *testing.T) {
	app := newTestEngine(t)

	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, keyEvent(keySpace))
	if !app.dispatcher.Paused {
		t.Fatal("dispatcher not paused after space")
	}
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, keyEvent(keySpace))
	if app.dispatcher.Paused {
		t.Error("dispatcher still paused after second space")
	}
	if !app.isRunning {
		t.Error("space stopped the engine")
	}
}

func TestResizeEventRecreatesFrameResources(t *testing.T) {
	app := newTestEngine(t)

	core.EventFire(core.EVENT_CODE_RESIZED, nil, resizeEvent(1024, 768))

	if app.width != 1024 || app.height != 768 {
		t.Fatalf("engine tracks %dx%d, want 1024x768", app.width, app.height)
	}
	want := metadata.Extent{Width: 1024, Height: 768}
	if got := app.frames.Extent(); got != want {
		t.Errorf("frame resources sized %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	if err := app.dispatcher.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame after resize failed: %v", err)
	}
}

func TestZeroSizeResizeSuspendsRendering(t *testing.T) {
	app := newTestEngine(t)

	core.EventFire(core.EVENT_CODE_RESIZED, nil, resizeEvent(0, 0))
	if !app.isSuspended {
		t.Fatal("engine not suspended after minimize")
	}
	core.EventFire(core.EVENT_CODE_RESIZED, nil, resizeEvent(800, 600))
	if app.isSuspended {
		t.Error("engine still suspended after restore")
	}
}
