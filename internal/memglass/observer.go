package memglass

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// FieldPath splits a dotted field name into its display group and leaf
// field, mirroring how the original inspection tool grouped nested-struct
// field names for display. Resolution of a field entry by name stays
// single-level: Field is looked up directly against a type's field list,
// the dotted prefix is presentation only (spec.md §4.E).
type FieldPath struct {
	Group string
	Field string
}

// SplitFieldPath splits full at its first '.'. A name with no dot returns
// an empty Group and the whole name as Field.
func SplitFieldPath(full string) FieldPath {
	if i := strings.IndexByte(full, '.'); i >= 0 {
		return FieldPath{Group: full[:i], Field: full[i+1:]}
	}
	return FieldPath{Field: full}
}

// Observer is a read-only attachment to a producer's session. It never
// takes the producer-side manager mutexes: it discovers new regions by
// walking the chains published in the header and region descriptors using
// only atomic loads, per spec.md §4.A's acquire/release discipline.
type Observer struct {
	mu           sync.RWMutex
	session      string
	headerMapped *mappedRegion
	header       *headerView
	regions      map[uint32]*dataRegion
	metaRegions  map[uint32]*metaRegion
	lastSeq      uint64
}

// Connect opens an existing session's header region, validates its magic
// and version, and performs an initial Refresh.
func Connect(session string) (*Observer, error) {
	mapped, err := openNamed(headerName(session))
	if err != nil {
		return nil, fmt.Errorf("connect to session %q: %w", session, err)
	}

	hv := &headerView{base: unsafe.Pointer(&mapped.mem[0])}
	if err := validateHeader(hv.header()); err != nil {
		_ = mapped.close()
		return nil, err
	}

	o := &Observer{
		session:      session,
		headerMapped: mapped,
		header:       hv,
		regions:      make(map[uint32]*dataRegion),
		metaRegions:  make(map[uint32]*metaRegion),
	}
	if err := o.Refresh(); err != nil {
		_ = mapped.close()
		return nil, err
	}
	return o, nil
}

// Sequence returns the last sequence number observed by Refresh.
func (o *Observer) Sequence() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastSeq
}

// Refresh maps any data regions and metadata overflow regions that have
// been added to their respective chains since the last call, then records
// the header's current sequence number. The two chains are discovered
// concurrently: each is independently growing and neither's traversal
// depends on the other.
func (o *Observer) Refresh() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var g errgroup.Group
	g.Go(o.loadRegions)
	g.Go(o.loadMetaRegions)
	if err := g.Wait(); err != nil {
		return err
	}

	o.lastSeq = o.header.header().Sequence()
	return nil
}

// loadRegions walks the data region chain from the header's first region,
// mapping any region not already known. Caller must hold o.mu.
func (o *Observer) loadRegions() error {
	id := o.header.header().FirstRegionID()
	for id != 0 {
		r, ok := o.regions[id]
		if !ok {
			mapped, err := openNamed(regionName(o.session, id))
			if err != nil {
				return fmt.Errorf("map data region %d: %w", id, err)
			}
			r = &dataRegion{mapped: mapped, desc: (*RegionDescriptor)(unsafe.Pointer(&mapped.mem[0]))}
			o.regions[id] = r
		}
		id = r.desc.NextRegionID()
	}
	return nil
}

// loadMetaRegions walks the metadata overflow chain from the header's
// first metadata region, mapping any region not already known. Caller
// must hold o.mu.
func (o *Observer) loadMetaRegions() error {
	id := o.header.header().FirstMetaID()
	for id != 0 {
		r, ok := o.metaRegions[id]
		if !ok {
			mapped, err := openNamed(metaRegionName(o.session, id))
			if err != nil {
				return fmt.Errorf("map metadata overflow region %d: %w", id, err)
			}
			r = &metaRegion{mapped: mapped, desc: (*MetadataOverflowDescriptor)(unsafe.Pointer(&mapped.mem[0]))}
			o.metaRegions[id] = r
		}
		id = r.desc.NextRegionID()
	}
	return nil
}

// fieldEntry resolves a field entry by its (storeID, index) pair, mirroring
// MetadataManager.fieldEntry on the observer side. Caller must hold o.mu.
func (o *Observer) fieldEntry(storeID, index uint32) *FieldEntry {
	if storeID == 0 {
		return o.header.fieldEntry(index)
	}
	r, ok := o.metaRegions[storeID]
	if !ok {
		return nil
	}
	return r.fieldEntry(index)
}

// Types returns every registered type entry, header-resident first,
// followed by each overflow region's entries in chain order.
func (o *Observer) Types() []*TypeEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []*TypeEntry
	hdir := &o.header.header().typeDir
	for i := uint32(0); i < hdir.Count(); i++ {
		out = append(out, o.header.typeEntry(i))
	}
	for id := o.header.header().FirstMetaID(); id != 0; {
		r := o.metaRegions[id]
		if r == nil {
			break
		}
		for i := uint32(0); i < r.desc.typeDir.Count(); i++ {
			out = append(out, r.typeEntry(i))
		}
		id = r.desc.NextRegionID()
	}
	return out
}

// FindType returns the type entry named name, or ok=false if none matches.
func (o *Observer) FindType(name string) (*TypeEntry, bool) {
	for _, t := range o.Types() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// FieldsOf returns the field entries declared by a TypeEntry.
func (o *Observer) FieldsOf(t *TypeEntry) []*FieldEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*FieldEntry, t.fieldCount)
	for i := range out {
		out[i] = o.fieldEntry(t.fieldStoreID, t.fieldIndex+uint32(i))
	}
	return out
}

// Objects returns every registered object entry, header-resident first,
// followed by each overflow region's entries in chain order.
func (o *Observer) Objects() []*ObjectEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []*ObjectEntry
	hdir := &o.header.header().objectDir
	for i := uint32(0); i < hdir.Count(); i++ {
		out = append(out, o.header.objectEntry(i))
	}
	for id := o.header.header().FirstMetaID(); id != 0; {
		r := o.metaRegions[id]
		if r == nil {
			break
		}
		for i := uint32(0); i < r.desc.objectDir.Count(); i++ {
			out = append(out, r.objectEntry(i))
		}
		id = r.desc.NextRegionID()
	}
	return out
}

// LiveObjects returns every object entry not in StateDestroyed, mirroring
// the original tool's get_all_objects (spec.md §8 scenario S5).
func (o *Observer) LiveObjects() []*ObjectEntry {
	all := o.Objects()
	live := make([]*ObjectEntry, 0, len(all))
	for _, e := range all {
		if e.State() != StateDestroyed {
			live = append(live, e)
		}
	}
	return live
}

// FindObject returns the object entry with the given label, or ok=false if
// none matches or it has been destroyed.
func (o *Observer) FindObject(label string) (*ObjectEntry, bool) {
	for _, e := range o.Objects() {
		if e.Label() == label && e.State() == StateLive {
			return e, true
		}
	}
	return nil, false
}

// ObjectView is a resolved handle on one live object: its entry, its
// registered type, and the base address of its storage bytes, ready for
// field-level access. It is returned by both Observer.Object and
// Context.Object, so its field resolver is supplied by the caller rather
// than hard-wired to either side.
type ObjectView struct {
	fieldsOf func(*TypeEntry) []*FieldEntry
	entry    *ObjectEntry
	typ      *TypeEntry
	base     unsafe.Pointer
}

// Object resolves label to an ObjectView, looking up its type and locating
// its storage in a data region this observer has already mapped. A region
// not yet mapped by Refresh is an ErrInvalidObject error.
func (o *Observer) Object(label string) (*ObjectView, error) {
	entry, ok := o.FindObject(label)
	if !ok {
		return nil, fmt.Errorf("%w: object %q not found or destroyed", ErrInvalidObject, label)
	}

	o.mu.RLock()
	region, ok := o.regions[entry.RegionID()]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: object %q's region %d is not mapped", ErrInvalidObject, label, entry.RegionID())
	}

	var typ *TypeEntry
	for _, t := range o.Types() {
		if t.TypeID() == entry.TypeID() {
			typ = t
			break
		}
	}
	if typ == nil {
		return nil, fmt.Errorf("%w: object %q's type %d is not registered", ErrInvalidObject, label, entry.TypeID())
	}

	base := unsafe.Pointer(uintptr(region.base()) + uintptr(entry.Offset()))
	return &ObjectView{fieldsOf: o.FieldsOf, entry: entry, typ: typ, base: base}, nil
}

// Type returns the object's registered type.
func (v *ObjectView) Type() *TypeEntry { return v.typ }

// Entry returns the object's metadata entry.
func (v *ObjectView) Entry() *ObjectEntry { return v.entry }

// Field resolves name against the object's type's field list and returns
// a proxy for reading or writing it. Resolution is single-level: a dotted
// name is matched against a field's full recorded name, it is not split
// and walked as a nested path (spec.md §4.E).
func (v *ObjectView) Field(name string) (*FieldProxy, error) {
	for _, f := range v.fieldsOf(v.typ) {
		if f.Name() == name {
			return &FieldProxy{
				entry: f,
				base:  unsafe.Pointer(uintptr(v.base) + uintptr(f.Offset())),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: field %q not found on type %q", ErrInvalidField, name, v.typ.Name())
}

// FieldProxy is a resolved handle on one field of one object instance: its
// metadata entry and the address of its cell (control word plus payload,
// for the Guarded and Locked modes) within the mapped region.
type FieldProxy struct {
	entry *FieldEntry
	base  unsafe.Pointer
}

// Info returns the field's metadata entry.
func (p *FieldProxy) Info() *FieldEntry { return p.entry }

// Read copies the field's current value into out, retrying until a
// consistent value is available under Guarded atomicity and spinning until
// the cell's flag is free under Locked atomicity; the None and Atomic modes
// read without waiting.
func (p *FieldProxy) Read(out []byte) error {
	if uint32(len(out)) != p.entry.Size() {
		return fmt.Errorf("%w: field %q is %d bytes, got buffer of %d", ErrInvalidField, p.entry.Name(), p.entry.Size(), len(out))
	}
	switch p.entry.Atomicity() {
	case AtomicityNone:
		RawRead(p.base, out)
	case AtomicityAtomic:
		v, err := AtomicLoad(p.base, p.entry.Size())
		if err != nil {
			return err
		}
		putUintBytes(out, v)
	case AtomicitySeqlock:
		GuardedRead(p.base, out)
	case AtomicityLocked:
		LockedRead(p.base, out)
	default:
		return fmt.Errorf("%w: field %q has unknown atomicity %d", ErrInvalidField, p.entry.Name(), p.entry.Atomicity())
	}
	return nil
}

// TryRead behaves like Read, except under Guarded atomicity it returns
// immediately with ok=false instead of retrying when a write is in
// progress. The None and Locked modes always succeed (ok=true) when sizes
// match, Locked after spinning for its flag; the Atomic mode succeeds for
// 4- and 8-byte fields and returns an error for any other width.
func (p *FieldProxy) TryRead(out []byte) (ok bool, err error) {
	if uint32(len(out)) != p.entry.Size() {
		return false, fmt.Errorf("%w: field %q is %d bytes, got buffer of %d", ErrInvalidField, p.entry.Name(), p.entry.Size(), len(out))
	}
	switch p.entry.Atomicity() {
	case AtomicityNone:
		RawRead(p.base, out)
		return true, nil
	case AtomicityAtomic:
		v, err := AtomicLoad(p.base, p.entry.Size())
		if err != nil {
			return false, err
		}
		putUintBytes(out, v)
		return true, nil
	case AtomicitySeqlock:
		ok, _ := GuardedTryRead(p.base, out)
		return ok, nil
	case AtomicityLocked:
		LockedRead(p.base, out)
		return true, nil
	default:
		return false, fmt.Errorf("%w: field %q has unknown atomicity %d", ErrInvalidField, p.entry.Name(), p.entry.Atomicity())
	}
}

// Write publishes payload into the field's cell, using the protocol its
// atomicity mode demands. Only a session's producer should call this; the
// package does not itself enforce single-writer discipline (spec.md §4.D).
func (p *FieldProxy) Write(payload []byte) error {
	if uint32(len(payload)) != p.entry.Size() {
		return fmt.Errorf("%w: field %q is %d bytes, got payload of %d", ErrInvalidField, p.entry.Name(), p.entry.Size(), len(payload))
	}
	switch p.entry.Atomicity() {
	case AtomicityNone:
		RawWrite(p.base, payload)
	case AtomicityAtomic:
		if err := AtomicStore(p.base, p.entry.Size(), uintFromBytes(payload)); err != nil {
			return err
		}
	case AtomicitySeqlock:
		GuardedWrite(p.base, payload)
	case AtomicityLocked:
		LockedWrite(p.base, payload)
	default:
		return fmt.Errorf("%w: field %q has unknown atomicity %d", ErrInvalidField, p.entry.Name(), p.entry.Atomicity())
	}
	return nil
}

// putUintBytes writes the low n bytes of v into out, little-endian, for
// AtomicLoad results whose width matched an AtomicityAtomic field's size.
func putUintBytes(out []byte, v uint64) {
	for i := range out {
		out[i] = byte(v >> (8 * i))
	}
}

// uintFromBytes reads a little-endian unsigned integer out of in, for
// AtomicStore calls on an AtomicityAtomic field.
func uintFromBytes(in []byte) uint64 {
	var v uint64
	for i, b := range in {
		v |= uint64(b) << (8 * i)
	}
	return v
}
