package metadata

/** @brief The pipeline stage a shader binary is compiled for. */
type ShaderStageKind uint8

const (
	ShaderStageRaygen ShaderStageKind = iota
	ShaderStageMiss
	ShaderStageClosestHit
	ShaderStageCallable
)

func (k ShaderStageKind) String() string {
	switch k {
	case ShaderStageRaygen:
		return "raygen"
	case ShaderStageMiss:
		return "miss"
	case ShaderStageClosestHit:
		return "closest-hit"
	case ShaderStageCallable:
		return "callable"
	}
	return "unknown"
}

/** @brief A shader stage: an opaque SPIR-V blob plus its kind. */
type ShaderStage struct {
	Kind ShaderStageKind
	Name string
	Code []byte
}

// ShaderUnused marks an unreferenced stage slot inside a group.
const ShaderUnused uint32 = 0xFFFFFFFF

/** @brief The kind of a shader group. */
type ShaderGroupKind uint8

const (
	ShaderGroupGeneral ShaderGroupKind = iota
	ShaderGroupTrianglesHit
)

/**
 * @brief One pipeline shader group. Groups are identified by their
 * insertion ordinal; the binding table slices the flat handle block by
 * these ordinals, so their order is part of the contract:
 * raygen=0, miss=1, hit=2, callables occupy [3, 3+objectCount).
 */
type ShaderGroup struct {
	Kind ShaderGroupKind
	// Stage ordinals; ShaderUnused where not applicable.
	General      uint32
	ClosestHit   uint32
	AnyHit       uint32
	Intersection uint32
	// Assigned insertion ordinal.
	Ordinal uint32
}

// The fixed group ordinals of the callable-shader pipeline.
const (
	GroupOrdinalRaygen        uint32 = 0
	GroupOrdinalMiss          uint32 = 1
	GroupOrdinalHit           uint32 = 2
	GroupOrdinalFirstCallable uint32 = 3
)

/** @brief A strided device address range handed to the trace dispatch. */
type StridedRegion struct {
	DeviceAddress uint64
	Stride        uint64
	Size          uint64
}

/**
 * @brief One binding table category: its backing buffer and the strided
 * region the dispatch consumes.
 */
type BindingTableRegion struct {
	Buffer      *Buffer
	Region      StridedRegion
	RecordCount uint32
}

/** @brief The four binding table categories of the pipeline. */
type ShaderBindingTable struct {
	Raygen   BindingTableRegion
	Miss     BindingTableRegion
	Hit      BindingTableRegion
	Callable BindingTableRegion
}
