package memglass

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// MetadataOverflowDescriptor is the fixed-size record at offset 0 of every
// metadata overflow region. Its three sub-directories (objects, types,
// fields) describe sections laid out contiguously immediately after it, in
// that order (spec.md §3, §4.C).
type MetadataOverflowDescriptor struct {
	magic        uint64
	regionID     uint32
	_pad         uint32
	nextRegionID uint32 // atomic, 0 = tail
	_pad2        uint32
	objectDir    DirectoryDescriptor
	typeDir      DirectoryDescriptor
	fieldDir     DirectoryDescriptor
}

const overflowHeaderSize = uint64(unsafe.Sizeof(MetadataOverflowDescriptor{}))

// ID returns the overflow region's id.
func (d *MetadataOverflowDescriptor) ID() uint32 { return atomic.LoadUint32(&d.regionID) }

// NextRegionID returns the next overflow region id in the chain, or 0.
func (d *MetadataOverflowDescriptor) NextRegionID() uint32 { return atomic.LoadUint32(&d.nextRegionID) }

// metaRegion pairs a mapped overflow region with a typed view of its
// descriptor and the three entry arrays that follow it.
type metaRegion struct {
	mapped *mappedRegion
	desc   *MetadataOverflowDescriptor
}

func (r *metaRegion) base() unsafe.Pointer { return unsafe.Pointer(&r.mapped.mem[0]) }

func (r *metaRegion) typeEntry(i uint32) *TypeEntry {
	off := uintptr(r.desc.typeDir.offset) + uintptr(i)*unsafe.Sizeof(TypeEntry{})
	return (*TypeEntry)(unsafe.Pointer(uintptr(r.base()) + off))
}

func (r *metaRegion) fieldEntry(i uint32) *FieldEntry {
	off := uintptr(r.desc.fieldDir.offset) + uintptr(i)*unsafe.Sizeof(FieldEntry{})
	return (*FieldEntry)(unsafe.Pointer(uintptr(r.base()) + off))
}

func (r *metaRegion) objectEntry(i uint32) *ObjectEntry {
	off := uintptr(r.desc.objectDir.offset) + uintptr(i)*unsafe.Sizeof(ObjectEntry{})
	return (*ObjectEntry)(unsafe.Pointer(uintptr(r.base()) + off))
}

// fieldRef locates a field entry run in exactly one backing store: the
// header's field directory (storeID == 0) or one overflow region's field
// section (storeID == that region's id). spec.md §4.E requires that a
// type's field run never straddle two backing stores; this pair is how
// this module records which single store a given run lives in.
type fieldRef struct {
	storeID uint32
	index   uint32
}

// MetadataManager allocates slots for type, field, and object records in
// the header's inline directories and, once those are exhausted, in chained
// metadata overflow regions (spec.md §4.C). Allocation routines are
// producer-only; observers read through the same directories without
// contending for mm.mu.
type MetadataManager struct {
	mu          sync.Mutex
	session     string
	header      *headerView
	regionSize  uint64
	overflow    []*metaRegion // allocation order
	byID        map[uint32]*metaRegion
	nextMetaID  uint32
}

func newMetadataManager(session string, header *headerView, overflowRegionSize uint64) *MetadataManager {
	return &MetadataManager{
		session:    session,
		header:     header,
		regionSize: overflowRegionSize,
		byID:       make(map[uint32]*metaRegion),
	}
}

// tail returns the current tail overflow region, or nil if none exists yet.
func (mm *MetadataManager) tail() *metaRegion {
	if len(mm.overflow) == 0 {
		return nil
	}
	return mm.overflow[len(mm.overflow)-1]
}

// createOverflowRegion creates and chains a new metadata overflow region,
// splitting its data area across the object/type/field sections by the
// configured byte shares.
func (mm *MetadataManager) createOverflowRegion() (*metaRegion, error) {
	mm.nextMetaID++
	id := mm.nextMetaID
	name := metaRegionName(mm.session, id)

	mapped, err := createNamed(name, mm.regionSize)
	if err != nil {
		return nil, fmt.Errorf("create metadata overflow region %d: %w", id, err)
	}

	desc := (*MetadataOverflowDescriptor)(unsafe.Pointer(&mapped.mem[0]))
	desc.magic = overflowMagic
	desc.regionID = id
	atomic.StoreUint32(&desc.nextRegionID, 0)

	avail := mm.regionSize - overflowHeaderSize
	objectBytes := uint64(float64(avail) * overflowObjectShare)
	typeBytes := uint64(float64(avail) * overflowTypeShare)
	fieldBytes := avail - objectBytes - typeBytes

	desc.objectDir = DirectoryDescriptor{
		offset:   uint32(overflowHeaderSize),
		capacity: uint32(objectBytes / uint64(unsafe.Sizeof(ObjectEntry{}))),
	}
	desc.typeDir = DirectoryDescriptor{
		offset:   uint32(overflowHeaderSize + objectBytes),
		capacity: uint32(typeBytes / uint64(unsafe.Sizeof(TypeEntry{}))),
	}
	desc.fieldDir = DirectoryDescriptor{
		offset:   uint32(overflowHeaderSize + objectBytes + typeBytes),
		capacity: uint32(fieldBytes / uint64(unsafe.Sizeof(FieldEntry{}))),
	}

	region := &metaRegion{mapped: mapped, desc: desc}

	if prev := mm.tail(); prev != nil {
		atomic.StoreUint32(&prev.desc.nextRegionID, id)
	} else {
		mm.header.header().setFirstMetaID(id)
	}

	mm.overflow = append(mm.overflow, region)
	mm.byID[id] = region
	return region, nil
}

// AllocateObjectEntry reserves one object entry slot, first in the header
// directory, then in the tail overflow region, creating a new overflow
// region if needed.
func (mm *MetadataManager) AllocateObjectEntry() (entry *ObjectEntry, storeID, index uint32, err error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if i, ok := mm.header.header().objectDir.tryReserve(); ok {
		return mm.header.objectEntry(i), 0, i, nil
	}

	if tail := mm.tail(); tail != nil {
		if i, ok := tail.desc.objectDir.tryReserve(); ok {
			return tail.objectEntry(i), tail.desc.ID(), i, nil
		}
	}

	region, err := mm.createOverflowRegion()
	if err != nil {
		return nil, 0, 0, err
	}
	i, ok := region.desc.objectDir.tryReserve()
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: fresh overflow region has no object capacity", ErrOutOfSpace)
	}
	return region.objectEntry(i), region.desc.ID(), i, nil
}

// AllocateTypeEntry reserves one type entry slot, first in the header
// directory, then in the tail overflow region, creating a new overflow
// region if needed.
func (mm *MetadataManager) AllocateTypeEntry() (entry *TypeEntry, storeID, index uint32, err error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if i, ok := mm.header.header().typeDir.tryReserve(); ok {
		return mm.header.typeEntry(i), 0, i, nil
	}

	if tail := mm.tail(); tail != nil {
		if i, ok := tail.desc.typeDir.tryReserve(); ok {
			return tail.typeEntry(i), tail.desc.ID(), i, nil
		}
	}

	region, err := mm.createOverflowRegion()
	if err != nil {
		return nil, 0, 0, err
	}
	i, ok := region.desc.typeDir.tryReserve()
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: fresh overflow region has no type capacity", ErrOutOfSpace)
	}
	return region.typeEntry(i), region.desc.ID(), i, nil
}

// AllocateFieldEntries reserves a contiguous run of n field entry slots
// from exactly one backing store: the header directory if it has n slots
// free, else the tail overflow region, else a freshly created one. A
// request larger than any single overflow region's field capacity fails
// with ErrOutOfSpace.
func (mm *MetadataManager) AllocateFieldEntries(n uint32) (ref fieldRef, err error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if i, ok := tryReserveRun(&mm.header.header().fieldDir, n); ok {
		return fieldRef{storeID: 0, index: i}, nil
	}

	if tail := mm.tail(); tail != nil {
		if i, ok := tryReserveRun(&tail.desc.fieldDir, n); ok {
			return fieldRef{storeID: tail.desc.ID(), index: i}, nil
		}
	}

	region, err := mm.createOverflowRegion()
	if err != nil {
		return fieldRef{}, err
	}
	i, ok := tryReserveRun(&region.desc.fieldDir, n)
	if !ok {
		return fieldRef{}, fmt.Errorf("%w: field run of %d exceeds overflow region field capacity %d", ErrOutOfSpace, n, region.desc.fieldDir.capacity)
	}
	return fieldRef{storeID: region.desc.ID(), index: i}, nil
}

// tryReserveRun reserves n contiguous slots in dir, all-or-nothing.
func tryReserveRun(dir *DirectoryDescriptor, n uint32) (uint32, bool) {
	cur := atomic.LoadUint32(&dir.count)
	if dir.capacity-cur < n {
		return 0, false
	}
	atomic.StoreUint32(&dir.count, cur+n)
	return cur, true
}

// fieldEntry resolves a field entry by its (storeID, index) pair.
func (mm *MetadataManager) fieldEntry(storeID, index uint32) *FieldEntry {
	if storeID == 0 {
		return mm.header.fieldEntry(index)
	}
	mm.mu.Lock()
	r := mm.byID[storeID]
	mm.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.fieldEntry(index)
}

// TotalTypeCount returns the header directory's type count plus every
// overflow region's type section count.
func (mm *MetadataManager) TotalTypeCount() uint32 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	total := mm.header.header().typeDir.Count()
	for _, r := range mm.overflow {
		total += r.desc.typeDir.Count()
	}
	return total
}

// TotalFieldCount returns the header directory's field count plus every
// overflow region's field section count.
func (mm *MetadataManager) TotalFieldCount() uint32 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	total := mm.header.header().fieldDir.Count()
	for _, r := range mm.overflow {
		total += r.desc.fieldDir.Count()
	}
	return total
}

// TotalObjectCount returns the header directory's object count plus every
// overflow region's object section count.
func (mm *MetadataManager) TotalObjectCount() uint32 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	total := mm.header.header().objectDir.Count()
	for _, r := range mm.overflow {
		total += r.desc.objectDir.Count()
	}
	return total
}

// close unmaps every overflow region this manager created.
func (mm *MetadataManager) close() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	var firstErr error
	for _, r := range mm.overflow {
		if err := r.mapped.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// unlink removes every overflow region's name from the shared-memory
// namespace.
func (mm *MetadataManager) unlink() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for _, r := range mm.overflow {
		_ = unlinkNamed(r.mapped.name)
	}
}
