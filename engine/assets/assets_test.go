package assets

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeSPIRV(t *testing.T, dir, name string, tag byte) []byte {
	t.Helper()
	data := make([]byte, spirvHeaderLength+4)
	binary.LittleEndian.PutUint32(data, spirvMagic)
	data[spirvHeaderLength] = tag
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { m.Shutdown() })
	return m
}

func TestManagerServesCatalog(t *testing.T) {
	dir := t.TempDir()
	want := map[string][]byte{
		RaygenFile:           writeSPIRV(t, dir, RaygenFile, 1),
		MissFile:             writeSPIRV(t, dir, MissFile, 2),
		ClosestHitFile:       writeSPIRV(t, dir, ClosestHitFile, 3),
		"callable1.rcall.spv": writeSPIRV(t, dir, "callable1.rcall.spv", 4),
		"callable2.rcall.spv": writeSPIRV(t, dir, "callable2.rcall.spv", 5),
	}

	m := newTestManager(t, dir)

	loads := []struct {
		name string
		load func() ([]byte, error)
	}{
		{RaygenFile, m.Raygen},
		{MissFile, m.Miss},
		{ClosestHitFile, m.ClosestHit},
		{"callable1.rcall.spv", func() ([]byte, error) { return m.Callable(0) }},
		{"callable2.rcall.spv", func() ([]byte, error) { return m.Callable(1) }},
	}
	for _, l := range loads {
		data, err := l.load()
		if err != nil {
			t.Fatalf("%s: load failed: %v", l.name, err)
		}
		if !bytes.Equal(data, want[l.name]) {
			t.Errorf("%s: wrong binary served", l.name)
		}
	}
}

func TestManagerMissingBinary(t *testing.T) {
	dir := t.TempDir()
	writeSPIRV(t, dir, RaygenFile, 1)

	m := newTestManager(t, dir)
	if _, err := m.Callable(0); err == nil {
		t.Fatal("expected an error for a missing callable binary")
	}
}

func TestManagerRejectsInvalidBinary(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte{0x03, 0x02, 0x23, 0x07}},
		{"bad magic", bytes.Repeat([]byte{0xAA}, spirvHeaderLength)},
		{"odd length", append(validHeader(), 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, MissFile), tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			m := newTestManager(t, dir)
			if _, err := m.Miss(); err == nil {
				t.Error("invalid binary was accepted")
			}
		})
	}
}

func validHeader() []byte {
	data := make([]byte, spirvHeaderLength)
	binary.LittleEndian.PutUint32(data, spirvMagic)
	return data
}

func TestManagerCachesReads(t *testing.T) {
	dir := t.TempDir()
	first := writeSPIRV(t, dir, RaygenFile, 1)

	m := newTestManager(t, dir)
	if _, err := m.Raygen(); err != nil {
		t.Fatal(err)
	}

	// Overwrite behind the cache; without an invalidation the stale copy
	// keeps being served.
	writeSPIRV(t, dir, RaygenFile, 9)
	data, err := m.Raygen()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, first) {
		t.Error("cache was bypassed")
	}

	m.invalidate(RaygenFile)
	data, err = m.Raygen()
	if err != nil {
		t.Fatal(err)
	}
	if data[spirvHeaderLength] != 9 {
		t.Error("invalidation did not pick up the rewritten binary")
	}
}
