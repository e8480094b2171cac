package engine

import (
	"errors"

	"github.com/spaghettifunk/prisma/engine/assets"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/components"
	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
	"github.com/spaghettifunk/prisma/engine/renderer/vulkan"
	"github.com/spaghettifunk/prisma/engine/systems"
)

// The trace recursion the pipeline is created with. The primary ray plus
// one shadow ray from the closest hit.
const rayRecursionDepth = 2

const (
	cameraFovDegrees float32 = 60.0
	cameraNearClip   float32 = 0.1
	cameraFarClip    float32 = 512.0
)

// GLFW key codes for the two keys the demo reacts to.
const (
	keySpace  uint16 = 32
	keyEscape uint16 = 256
)

type Engine struct {
	config   *Config
	platform *platform.Platform
	assets   *assets.Manager
	backend  renderer.Backend

	geometrySystem     *systems.GeometrySystem
	accelerationSystem *systems.AccelerationSystem
	registry           *systems.ShaderGroupRegistry
	tableBuilder       *systems.BindingTableBuilder

	scene       *systems.SceneGeometry
	bottomLevel *metadata.AccelerationStructure
	topLevel    *metadata.AccelerationStructure
	table       *metadata.ShaderBindingTable
	frames      *systems.FrameResourceManager
	camera      *components.Camera
	dispatcher  *systems.DispatchOrchestrator

	clock       *core.Clock
	lastTime    float64
	isRunning   bool
	isSuspended bool
	isShutdown  bool
	width       uint32
	height      uint32
}

func New(config *Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	assetManager, err := assets.NewManager()
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:      config,
		platform:    platform.New(),
		assets:      assetManager,
		clock:       core.NewClock(),
		isRunning:   false,
		isSuspended: false,
		width:       config.Width,
		height:      config.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	core.EventInitialize()

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if e.config.Backend == BackendVulkan {
		if err := e.platform.Startup(e.config.Title, e.config.StartPosX, e.config.StartPosY, e.config.Width, e.config.Height); err != nil {
			return err
		}
		e.backend = vulkan.New(e.platform)
	} else {
		e.backend = headless.New(headless.Config{FrameCount: e.config.FramesInFlight})
	}

	if err := e.assets.Initialize(e.config.ShaderDir); err != nil {
		return err
	}

	if err := e.backend.Initialize(e.config.Title, e.config.Width, e.config.Height); err != nil {
		return err
	}

	if err := e.prepareScene(); err != nil {
		return err
	}

	e.isRunning = true
	return nil
}

// prepareScene runs the one-time setup chain: geometry upload, the two
// acceleration structure builds, the pipeline, the binding table and the
// per-frame resources.
func (e *Engine) prepareScene() error {
	e.geometrySystem = systems.NewGeometrySystem(e.backend)
	e.accelerationSystem = systems.NewAccelerationSystem(e.backend)
	e.registry = systems.NewShaderGroupRegistry()
	e.tableBuilder = systems.NewBindingTableBuilder(e.backend)

	scene, err := e.geometrySystem.BuildScene(e.config.ObjectCount)
	if err != nil {
		return err
	}
	e.scene = scene

	blas, err := e.accelerationSystem.BuildBottomLevel(e.scene)
	if err != nil {
		return err
	}
	e.bottomLevel = blas

	tlas, err := e.accelerationSystem.BuildTopLevel(e.bottomLevel)
	if err != nil {
		return err
	}
	e.topLevel = tlas

	if err := systems.RegisterScenePipeline(e.registry, e.assets, e.config.ObjectCount); err != nil {
		return err
	}

	depth := math.Clamp(uint32(rayRecursionDepth), 1, e.backend.Capabilities().MaxRayRecursionDepth)
	if err := e.backend.PipelineCreate(e.registry.Stages(), e.registry.Groups(), depth); err != nil {
		return err
	}

	table, err := e.tableBuilder.Build(e.registry, e.config.ObjectCount)
	if err != nil {
		return err
	}
	e.table = table

	frames, err := systems.NewFrameResourceManager(e.backend, e.topLevel, e.scene, metadata.Extent{
		Width:  e.width,
		Height: e.height,
	})
	if err != nil {
		return err
	}
	e.frames = frames

	e.camera = components.NewCamera()
	e.camera.SetPosition(math.NewVec3(0, 0, -10))
	e.camera.SetPerspective(cameraFovDegrees, float32(e.width)/float32(e.height), cameraNearClip, cameraFarClip)

	e.dispatcher = systems.NewDispatchOrchestrator(e.backend, e.frames, e.table, e.camera)
	return nil
}

func (e *Engine) Run() error {
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var frameCount uint8 = 0
	targetFrameSeconds := 1.0 / 60.0

	for e.isRunning {
		if e.config.Backend == BackendVulkan && !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			e.platform.Sleep(100)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		frameStartTime := platform.GetAbsoluteTime()

		if err := e.dispatcher.DrawFrame(); err != nil {
			if errors.Is(err, core.ErrSwapchainOutOfDate) {
				if err := e.recreateFrameResources(e.width, e.height); err != nil {
					return err
				}
				continue
			}
			core.LogError("frame draw failed: %s", err.Error())
			return err
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		remainingSeconds := targetFrameSeconds - frameElapsedTime
		if remainingSeconds > 0 {
			e.platform.Sleep(remainingSeconds * 1000)
		}

		frameCount++
		e.lastTime = currentTime
	}
	return nil
}

func (e *Engine) recreateFrameResources(width, height uint32) error {
	if err := e.backend.Resized(width, height); err != nil {
		return err
	}
	if err := e.frames.OnResize(metadata.Extent{Width: width, Height: height}); err != nil {
		return err
	}
	e.camera.SetPerspective(cameraFovDegrees, float32(width)/float32(height), cameraNearClip, cameraFarClip)
	return nil
}

func (e *Engine) Shutdown() error {
	if e.isShutdown {
		return nil
	}
	e.isShutdown = true

	core.LogInfo("Shutting down...")
	e.isRunning = false

	if err := e.backend.DeviceWaitIdle(); err != nil {
		core.LogWarn("device wait idle failed during shutdown: %s", err.Error())
	}

	if e.frames != nil {
		e.frames.Destroy()
	}
	if e.table != nil {
		e.tableBuilder.Destroy(e.table)
	}
	e.backend.PipelineDestroy()
	if e.topLevel != nil {
		e.accelerationSystem.Destroy(e.topLevel)
	}
	if e.bottomLevel != nil {
		e.accelerationSystem.Destroy(e.bottomLevel)
	}
	if e.scene != nil {
		e.geometrySystem.Destroy(e.scene)
	}

	if err := e.backend.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if err := e.assets.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if e.config.Backend == BackendVulkan {
		if err := e.platform.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
	}

	core.EventShutdown()
	return nil
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("Quit event received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_KEY_PRESSED {
		return false
	}
	key := data.Data.U16[0]
	switch key {
	case keyEscape:
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case keySpace:
		e.dispatcher.Paused = !e.dispatcher.Paused
		core.LogInfo("Trace refresh paused: %t.", e.dispatcher.Paused)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_RESIZED {
		return false
	}
	width := uint32(data.Data.U16[0])
	height := uint32(data.Data.U16[1])
	if width == e.width && height == e.height {
		return false
	}

	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending rendering.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming rendering.")
		e.isSuspended = false
	}

	if err := e.recreateFrameResources(width, height); err != nil {
		core.LogError("failed to recreate frame resources after resize: %s", err.Error())
		e.isRunning = false
	}
	return true
}
