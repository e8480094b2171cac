package platform

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
}

func New() *Platform {
	return &Platform{
		Window: nil,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetFramebufferSizeCallback(framebufferSizeCallback)
	p.Window.SetCloseCallback(closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages drains the OS event queue. Returns false once the window
// wants to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// GetFramebufferSize returns the current framebuffer size in pixels.
func (p *Platform) GetFramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// GetRequiredInstanceExtensions returns the instance extensions the
// window system needs, null terminated for the Vulkan loader.
func (p *Platform) GetRequiredInstanceExtensions() []string {
	exts := p.Window.GetRequiredInstanceExtensions()
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, e+"\x00")
	}
	return out
}

// CreateVulkanSurface creates the presentation surface for the window.
func (p *Platform) CreateVulkanSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// GetVulkanGetInstanceProcAddress exposes the loader entry point the
// Vulkan bindings are initialized with.
func (p *Platform) GetVulkanGetInstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) Sleep(ms float64) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	context := core.EventContext{}
	context.Data.U16[0] = uint16(key)
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, context)
}

func framebufferSizeCallback(w *glfw.Window, width, height int) {
	context := core.EventContext{}
	context.Data.U16[0] = uint16(width)
	context.Data.U16[1] = uint16(height)
	core.EventFire(core.EVENT_CODE_RESIZED, nil, context)
}

func closeCallback(w *glfw.Window) {
	core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
}
