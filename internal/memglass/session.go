package memglass

import (
	"fmt"
	"os"
	"time"
	"unsafe"
)

// Config holds a producer's session parameters. DefaultConfig returns one
// with every field set to the package defaults; Init uses the values as
// given and does not fill in zero-valued fields, so callers typically start
// from DefaultConfig and override only what they need (spec.md §5).
type Config struct {
	// Session names this session within the shared-memory namespace. It
	// must satisfy validSessionName.
	Session string

	// InitialRegionSize is the size, in bytes, of the first data region.
	InitialRegionSize uint64
	// MaxRegionSize caps geometric growth of subsequent data regions.
	MaxRegionSize uint64
	// OverflowRegionSize is the size, in bytes, of each metadata overflow
	// region.
	OverflowRegionSize uint64

	// HeaderTypeCapacity, HeaderFieldCapacity, and HeaderObjectCapacity
	// size the header's inline directories. Registrations beyond these
	// capacities spill into metadata overflow regions.
	HeaderTypeCapacity   uint32
	HeaderFieldCapacity  uint32
	HeaderObjectCapacity uint32

	// ShutdownGrace is how long Shutdown waits before unlinking the
	// session's shared-memory names, giving any observer mid-refresh a
	// window to finish (spec.md §4.G step 6).
	ShutdownGrace time.Duration
}

// DefaultConfig returns a Config for session with the package's default
// sizing, matching the defaults documented in spec.md §5.
func DefaultConfig(session string) Config {
	return Config{
		Session:              session,
		InitialRegionSize:    defaultInitialRegionSize,
		MaxRegionSize:        defaultMaxRegionSize,
		OverflowRegionSize:   defaultOverflowRegionSize,
		HeaderTypeCapacity:   defaultHeaderTypeCapacity,
		HeaderFieldCapacity:  defaultHeaderFieldCapacity,
		HeaderObjectCapacity: defaultHeaderObjectCapacity,
		ShutdownGrace:        200 * time.Millisecond,
	}
}

// Context is a producer's live handle on a memglass session: the mapped
// header region plus the region, metadata, type, and object managers
// layered on top of it. Callers obtain one from Init and must call
// Shutdown when done (spec.md §4.G).
type Context struct {
	cfg          Config
	headerMapped *mappedRegion
	header       *headerView
	regions      *RegionManager
	meta         *MetadataManager
	types        *TypeRegistry
	objects      *ObjectManager
}

// headerRegionSize computes the total byte size of a header region: the
// SessionHeader struct followed by its three directory entry arrays, sized
// by the configured capacities.
func headerRegionSize(cfg Config) uint64 {
	size := uint64(headerDirectoriesBase)
	size += uint64(cfg.HeaderTypeCapacity) * uint64(unsafe.Sizeof(TypeEntry{}))
	size += uint64(cfg.HeaderFieldCapacity) * uint64(unsafe.Sizeof(FieldEntry{}))
	size += uint64(cfg.HeaderObjectCapacity) * uint64(unsafe.Sizeof(ObjectEntry{}))
	return size
}

// Init creates a new session's header region and wires up its managers.
// It is the producer-side bootstrap of spec.md §4.G: create the header
// region, initialize its directories, create the first data region, and
// publish everything a later observer needs to attach.
func Init(cfg Config) (*Context, error) {
	if !validSessionName(cfg.Session) {
		return nil, fmt.Errorf("%w: invalid session name %q", ErrInvalidObject, cfg.Session)
	}

	size := headerRegionSize(cfg)
	mapped, err := createNamed(headerName(cfg.Session), size)
	if err != nil {
		return nil, fmt.Errorf("create session header: %w", err)
	}

	hv := &headerView{base: unsafe.Pointer(&mapped.mem[0])}
	h := hv.header()
	h.magic = headerMagic
	h.version = protocolVersion
	h.headerSize = uint32(size)
	h.producerPID = uint32(os.Getpid())
	h.startUnixNano = time.Now().UnixNano()
	putPaddedName(h.name[:], cfg.Session)

	offset := uint32(headerDirectoriesBase)
	h.typeDir = DirectoryDescriptor{offset: offset, capacity: cfg.HeaderTypeCapacity}
	offset += cfg.HeaderTypeCapacity * uint32(unsafe.Sizeof(TypeEntry{}))
	h.fieldDir = DirectoryDescriptor{offset: offset, capacity: cfg.HeaderFieldCapacity}
	offset += cfg.HeaderFieldCapacity * uint32(unsafe.Sizeof(FieldEntry{}))
	h.objectDir = DirectoryDescriptor{offset: offset, capacity: cfg.HeaderObjectCapacity}

	regions, err := newRegionManager(cfg.Session, hv, cfg.InitialRegionSize, cfg.MaxRegionSize)
	if err != nil {
		_ = mapped.close()
		_ = unlinkNamed(mapped.name)
		return nil, fmt.Errorf("create first data region: %w", err)
	}

	meta := newMetadataManager(cfg.Session, hv, cfg.OverflowRegionSize)
	types := newTypeRegistry(meta, hv)
	objects := newObjectManager(regions, meta, types, hv)

	return &Context{
		cfg:          cfg,
		headerMapped: mapped,
		header:       hv,
		regions:      regions,
		meta:         meta,
		types:        types,
		objects:      objects,
	}, nil
}

// Types returns the session's type registry.
func (c *Context) Types() *TypeRegistry { return c.types }

// Objects returns the session's object manager.
func (c *Context) Objects() *ObjectManager { return c.objects }

// Name returns the session's name.
func (c *Context) Name() string { return c.cfg.Session }

// Object resolves label to an ObjectView over the producer's own mapping,
// for a producer that wants to write the fields of an object it just
// registered without attaching a separate Observer to itself.
func (c *Context) Object(label string) (*ObjectView, error) {
	c.objects.mu.Lock()
	id, ok := c.objects.byLabel[label]
	var entry *ObjectEntry
	if ok {
		entry = c.objects.byID[id]
	}
	c.objects.mu.Unlock()
	if !ok || entry == nil {
		return nil, fmt.Errorf("%w: object %q not found", ErrInvalidObject, label)
	}

	typ := c.types.Lookup(entry.TypeID())
	if typ == nil {
		return nil, fmt.Errorf("%w: object %q's type %d is not registered", ErrInvalidObject, label, entry.TypeID())
	}

	base := unsafe.Pointer(uintptr(c.regions.GetRegionData(entry.RegionID())) + uintptr(entry.Offset()))
	return &ObjectView{fieldsOf: c.types.FieldsOf, entry: entry, typ: typ, base: base}, nil
}

// Shutdown waits the configured grace interval, then unmaps and unlinks
// every shared-memory region this session created: the metadata overflow
// regions, the data regions, and finally the header region. Until that last
// step, an observer connecting during shutdown can still open the header
// while the regions it names are already unlinked.
func (c *Context) Shutdown() error {
	if c.cfg.ShutdownGrace > 0 {
		time.Sleep(c.cfg.ShutdownGrace)
	}

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	note(c.meta.close())
	c.meta.unlink()
	note(c.regions.close())
	c.regions.unlink()
	note(c.headerMapped.close())
	note(unlinkNamed(c.headerMapped.name))

	return firstErr
}
