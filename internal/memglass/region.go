package memglass

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// RegionDescriptor is the fixed-size record at offset 0 of every data
// region. User bytes begin immediately after it (spec.md §3).
type RegionDescriptor struct {
	magic        uint64
	regionID     uint32
	_pad         uint32
	size         uint64
	used         uint64 // atomic, next free offset
	nextRegionID uint32 // atomic, 0 = tail
	_pad2        uint32
	name         [regionNameCap]byte
}

// regionHeaderSize is the size, in bytes, of a RegionDescriptor: user bytes
// in a data region begin at this offset.
const regionHeaderSize = uint64(unsafe.Sizeof(RegionDescriptor{}))

// ID returns the region's id.
func (d *RegionDescriptor) ID() uint32 { return atomic.LoadUint32(&d.regionID) }

// Size returns the region's total size in bytes, including its descriptor.
func (d *RegionDescriptor) Size() uint64 { return atomic.LoadUint64(&d.size) }

// Used returns the next free offset within the region (acquire load).
func (d *RegionDescriptor) Used() uint64 { return atomic.LoadUint64(&d.used) }

// NextRegionID returns the id of the next region in the chain, or 0 if this
// is the tail.
func (d *RegionDescriptor) NextRegionID() uint32 { return atomic.LoadUint32(&d.nextRegionID) }

// Name returns the region's shared-memory name.
func (d *RegionDescriptor) Name() string { return getPaddedName(d.name[:]) }

// dataRegion pairs a mapped byte region with a typed view of its
// RegionDescriptor header.
type dataRegion struct {
	mapped *mappedRegion
	desc   *RegionDescriptor
}

func (r *dataRegion) base() unsafe.Pointer { return unsafe.Pointer(&r.mapped.mem[0]) }

func (r *dataRegion) dataArea() unsafe.Pointer {
	return unsafe.Pointer(uintptr(r.base()) + uintptr(regionHeaderSize))
}

// RegionManager maintains the per-process ordered chain of mapped data
// regions and bump-allocates aligned bytes for user objects, per spec.md
// §4.B. Producers own the mutator side; observers never call allocate.
type RegionManager struct {
	mu           sync.Mutex
	session      string
	header       *headerView
	maxRegion    uint64
	currentSize  uint64
	regions      []*dataRegion // allocation order; index is NOT region id
	byID         map[uint32]*dataRegion
	nextRegionID uint32
}

// newRegionManager creates region 1 with the given initial size and
// publishes its id into the header (spec.md §4.G step 3).
func newRegionManager(session string, header *headerView, initialSize, maxRegionSize uint64) (*RegionManager, error) {
	rm := &RegionManager{
		session:     session,
		header:      header,
		maxRegion:   maxRegionSize,
		currentSize: initialSize,
		byID:        make(map[uint32]*dataRegion),
	}
	first, err := rm.createRegion(initialSize)
	if err != nil {
		return nil, err
	}
	header.header().firstRegionID = first.desc.ID()
	return rm, nil
}

// createRegion creates, maps, and appends a new data region of size bytes,
// stitching it onto the tail of the chain if one exists.
func (rm *RegionManager) createRegion(size uint64) (*dataRegion, error) {
	rm.nextRegionID++
	id := rm.nextRegionID
	name := regionName(rm.session, id)

	mapped, err := createNamed(name, size)
	if err != nil {
		return nil, fmt.Errorf("create data region %d: %w", id, err)
	}

	region := &dataRegion{mapped: mapped, desc: (*RegionDescriptor)(unsafe.Pointer(&mapped.mem[0]))}
	region.desc.magic = regionMagic
	region.desc.regionID = id
	region.desc.size = size
	atomic.StoreUint64(&region.desc.used, regionHeaderSize)
	atomic.StoreUint32(&region.desc.nextRegionID, 0)
	putPaddedName(region.desc.name[:], name)

	if len(rm.regions) > 0 {
		tail := rm.regions[len(rm.regions)-1]
		atomic.StoreUint32(&tail.desc.nextRegionID, id)
	}

	rm.regions = append(rm.regions, region)
	rm.byID[id] = region
	return region, nil
}

// Allocate bump-allocates size bytes aligned to alignment from the tail
// region, growing the chain if needed, and returns a pointer to the user
// bytes. It never issues an allocation that would cross a region boundary:
// a request larger than the negotiated next region size grows that next
// region to fit (spec.md §4.B).
func (rm *RegionManager) Allocate(size, alignment uint64) (unsafe.Pointer, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for {
		tail := rm.regions[len(rm.regions)-1]
		used := atomic.LoadUint64(&tail.desc.used)
		aligned := alignUp(used, alignment)
		newUsed := aligned + size

		if newUsed <= tail.desc.Size() {
			atomic.StoreUint64(&tail.desc.used, newUsed)
			return unsafe.Pointer(uintptr(tail.base()) + uintptr(aligned)), nil
		}

		nextSize := size + regionHeaderSize
		if grown := rm.currentSize * 2; grown > nextSize {
			nextSize = grown
		}
		if nextSize > rm.maxRegion {
			if size+regionHeaderSize > rm.maxRegion {
				return nil, fmt.Errorf("%w: allocation of %d bytes exceeds max region size %d", ErrOutOfSpace, size, rm.maxRegion)
			}
			nextSize = rm.maxRegion
		}
		rm.currentSize = nextSize

		if _, err := rm.createRegion(nextSize); err != nil {
			return nil, err
		}
		rm.header.header().bumpSequence()
		// Loop and retry the allocation against the freshly-created tail.
	}
}

// GetLocation resolves ptr to the (region id, offset) pair it falls within,
// by a linear scan over the region list, or ok=false if ptr lies in none of
// them.
func (rm *RegionManager) GetLocation(ptr unsafe.Pointer) (regionID uint32, offset uint64, ok bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	addr := uintptr(ptr)
	for _, r := range rm.regions {
		base := uintptr(r.base())
		size := uintptr(r.desc.Size())
		if addr >= base && addr < base+size {
			return r.desc.ID(), uint64(addr - base), true
		}
	}
	return 0, 0, false
}

// GetRegionData returns the base address of region id, or nil if unknown.
func (rm *RegionManager) GetRegionData(id uint32) unsafe.Pointer {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, ok := rm.byID[id]
	if !ok {
		return nil
	}
	return r.base()
}

// close unmaps every data region this manager created.
func (rm *RegionManager) close() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var firstErr error
	for _, r := range rm.regions {
		if err := r.mapped.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// unlink removes every data region's name from the shared-memory namespace.
func (rm *RegionManager) unlink() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, r := range rm.regions {
		_ = unlinkNamed(r.mapped.name)
	}
}
