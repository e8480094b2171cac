package systems

import (
	"bytes"
	"testing"

	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

func buildTestTable(t *testing.T, config headless.Config, objectCount uint32) (*headless.Backend, *metadata.ShaderBindingTable) {
	t.Helper()

	backend := headless.New(config)
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	registry := NewShaderGroupRegistry()
	if err := RegisterScenePipeline(registry, newStaticCatalog(objectCount), objectCount); err != nil {
		t.Fatalf("RegisterScenePipeline failed: %v", err)
	}
	if err := backend.PipelineCreate(registry.Stages(), registry.Groups(), backend.Capabilities().MaxRayRecursionDepth); err != nil {
		t.Fatalf("PipelineCreate failed: %v", err)
	}

	table, err := NewBindingTableBuilder(backend).Build(registry, objectCount)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return backend, table
}

func TestBindingTableRegions(t *testing.T) {
	// 32 byte handles at 64 byte alignment: 6 groups make a 384 byte
	// handle block, the callable region is 3 records of 64 bytes.
	config := headless.Config{ShaderGroupHandleSize: 32, HandleAlignment: 64}
	backend, table := buildTestTable(t, config, 3)

	regions := []struct {
		name        string
		region      *metadata.BindingTableRegion
		recordCount uint32
	}{
		{"raygen", &table.Raygen, 1},
		{"miss", &table.Miss, 1},
		{"hit", &table.Hit, 1},
		{"callable", &table.Callable, 3},
	}
	var total uint64
	for _, r := range regions {
		if r.region.RecordCount != r.recordCount {
			t.Errorf("%s record count = %d, want %d", r.name, r.region.RecordCount, r.recordCount)
		}
		if r.region.Region.Stride != 64 {
			t.Errorf("%s stride = %d, want 64", r.name, r.region.Region.Stride)
		}
		if want := uint64(r.recordCount) * 64; r.region.Region.Size != want {
			t.Errorf("%s size = %d, want %d", r.name, r.region.Region.Size, want)
		}
		if r.region.Region.DeviceAddress != r.region.Buffer.DeviceAddress {
			t.Errorf("%s region address does not match its buffer", r.name)
		}
		total += r.region.Region.Size
	}
	if total != 384 {
		t.Errorf("table total = %d bytes, want 384", total)
	}

	NewBindingTableBuilder(backend).Destroy(table)
	if got := backend.LiveBuffers(); got != 0 {
		t.Errorf("%d buffers still live after Destroy", got)
	}
}

func TestBindingTableRecordPlacement(t *testing.T) {
	// The headless device writes group ordinal n+1 into every handle byte
	// of group n, so record contents identify their source group.
	config := headless.Config{ShaderGroupHandleSize: 32, HandleAlignment: 64}
	backend, table := buildTestTable(t, config, 3)
	defer NewBindingTableBuilder(backend).Destroy(table)

	if table.Raygen.Buffer.Mapped[0] != 1 || table.Miss.Buffer.Mapped[0] != 2 || table.Hit.Buffer.Mapped[0] != 3 {
		t.Error("fixed regions do not carry their group handles")
	}

	for record := 0; record < 3; record++ {
		want := byte(4 + record)
		got := table.Callable.Buffer.Mapped[record*64 : record*64+32]
		if !bytes.Equal(got, bytes.Repeat([]byte{want}, 32)) {
			t.Errorf("callable record %d does not carry group %d's handle", record, 3+record)
		}
		// Alignment padding stays zero.
		padding := table.Callable.Buffer.Mapped[record*64+32 : (record+1)*64]
		if !bytes.Equal(padding, make([]byte, 32)) {
			t.Errorf("callable record %d padding is not zero", record)
		}
	}
}

func TestBindingTableTightAlignment(t *testing.T) {
	// When the alignment equals the handle size there is no padding and
	// records sit back to back.
	config := headless.Config{ShaderGroupHandleSize: 32, HandleAlignment: 32}
	backend, table := buildTestTable(t, config, 2)
	defer NewBindingTableBuilder(backend).Destroy(table)

	if table.Callable.Region.Stride != 32 {
		t.Errorf("stride = %d, want 32", table.Callable.Region.Stride)
	}
	if table.Callable.Region.Size != 64 {
		t.Errorf("callable size = %d, want 64", table.Callable.Region.Size)
	}
	if table.Callable.Buffer.Mapped[0] != 4 || table.Callable.Buffer.Mapped[32] != 5 {
		t.Error("callable records are not packed at the handle size")
	}
}

func TestBindingTableCallableCountFollowsObjects(t *testing.T) {
	for _, objectCount := range []uint32{1, 4} {
		backend, table := buildTestTable(t, headless.Config{}, objectCount)
		if table.Callable.RecordCount != objectCount {
			t.Errorf("objectCount=%d: callable record count = %d", objectCount, table.Callable.RecordCount)
		}
		NewBindingTableBuilder(backend).Destroy(table)
	}
}

func TestBindingTableWithoutPipeline(t *testing.T) {
	backend := headless.New(headless.Config{})
	if err := backend.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	registry := NewShaderGroupRegistry()
	if err := RegisterScenePipeline(registry, newStaticCatalog(1), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBindingTableBuilder(backend).Build(registry, 1); err == nil {
		t.Fatal("expected an error without a live pipeline")
	}
}
