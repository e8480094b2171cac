package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prisma/engine/core"
)

// The pipeline's shader binary naming scheme. Callable shaders are
// numbered from one: callable1.rcall.spv, callable2.rcall.spv, ...
const (
	RaygenFile        = "raygen.rgen.spv"
	MissFile          = "miss.rmiss.spv"
	ClosestHitFile    = "closesthit.rchit.spv"
	callableFileFmt   = "callable%d.rcall.spv"
	spirvMagic        = 0x07230203
	spirvWordSize     = 4
	spirvHeaderLength = 5 * spirvWordSize
)

/**
 * @brief Serves the pre-compiled SPIR-V binaries of the pipeline from a
 * directory. Binaries are cached after the first read; the watcher
 * invalidates a cache entry when its file changes on disk, so the next
 * load picks up a recompiled shader.
 */
type Manager struct {
	dir   string
	cache map[string][]byte
	mutex sync.Mutex

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	isClosed bool
}

func NewManager() (*Manager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Manager{
		cache:    make(map[string][]byte),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

// Initialize points the manager at the shader directory and starts the
// watcher. The directory must exist; individual binaries are only read
// when first requested.
func (m *Manager) Initialize(shaderDir string) error {
	info, err := os.Stat(shaderDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("shader path %s is not a directory", shaderDir)
	}
	m.dir = shaderDir

	if err := m.fsnotify.Add(shaderDir); err != nil {
		return err
	}
	go m.start()

	core.LogInfo("serving shader binaries from %s", shaderDir)
	return nil
}

func (m *Manager) Shutdown() error {
	if m.isClosed {
		return errors.New("asset manager already closed")
	}
	m.isClosed = true
	close(m.done)
	return nil
}

// Raygen returns the ray generation shader binary.
func (m *Manager) Raygen() ([]byte, error) {
	return m.load(RaygenFile)
}

// Miss returns the miss shader binary.
func (m *Manager) Miss() ([]byte, error) {
	return m.load(MissFile)
}

// ClosestHit returns the closest hit shader binary.
func (m *Manager) ClosestHit() ([]byte, error) {
	return m.load(ClosestHitFile)
}

// Callable returns callable shader binary index, counting from zero.
func (m *Manager) Callable(index uint32) ([]byte, error) {
	return m.load(fmt.Sprintf(callableFileFmt, index+1))
}

func (m *Manager) load(name string) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if data, ok := m.cache[name]; ok {
		return data, nil
	}

	path := filepath.Join(m.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		core.LogError("failed to read shader binary %s", path)
		return nil, err
	}
	if err := validateSPIRV(data); err != nil {
		core.LogError("shader binary %s is invalid", path)
		return nil, err
	}
	m.cache[name] = data
	core.LogDebug("loaded shader binary %s (%d bytes)", name, len(data))
	return data, nil
}

// validateSPIRV checks the module header before the binary reaches the
// device: the magic word and whole-word length.
func validateSPIRV(data []byte) error {
	if len(data) < spirvHeaderLength {
		return fmt.Errorf("binary is %d bytes, shorter than a module header", len(data))
	}
	if len(data)%spirvWordSize != 0 {
		return fmt.Errorf("binary length %d is not word aligned", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != spirvMagic {
		return fmt.Errorf("bad magic word %#08x", magic)
	}
	return nil
}

func (m *Manager) start() {
	for {
		select {
		case e := <-m.fsnotify.Events:
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				m.invalidate(filepath.Base(e.Name))
			}

		case e := <-m.fsnotify.Errors:
			core.LogError(e.Error())

		case <-m.done:
			m.fsnotify.Close()
			return
		}
	}
}

// invalidate drops a changed binary from the cache. The running pipeline
// keeps its modules; the fresh binary is picked up on the next pipeline
// build.
func (m *Manager) invalidate(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.cache[name]; ok {
		delete(m.cache, name)
		core.LogInfo("shader binary %s changed on disk, cache entry dropped", name)
	}
}
