package memglass

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ObjectState tracks an object entry's lifecycle (spec.md §4.F). A
// destroyed object's storage is not reclaimed and stays mapped for the rest
// of the session; Observer.FindObject and Observer.Object only resolve
// entries in StateLive.
//
//go:generate go tool stringer -type=ObjectState -output objectstate_string.go
type ObjectState uint32

const (
	// StateFree marks an object slot whose entry has not been published as
	// live yet. Slots are never reused: a destroyed slot does not return to
	// this state.
	StateFree ObjectState = iota
	// StateLive marks an object that is registered and safe to read.
	StateLive
	// StateDestroyed marks an object whose producer has called
	// DestroyObject; its storage bytes stay allocated and mapped.
	StateDestroyed
)

// ObjectEntry is the fixed-size metadata record describing one registered
// object instance: its type, its storage location as a (region, offset)
// pair rather than a raw pointer (spec.md §4.F), and its lifecycle state.
type ObjectEntry struct {
	objectID uint32
	typeID   uint32
	regionID uint32
	state    uint32 // atomic
	offset   uint64
	label    [objectLabelCap]byte
}

// ObjectID returns the object's stable id.
func (o *ObjectEntry) ObjectID() uint32 { return o.objectID }

// TypeID returns the id of the object's registered type.
func (o *ObjectEntry) TypeID() TypeID { return TypeID(o.typeID) }

// RegionID returns the id of the data region the object's bytes live in.
func (o *ObjectEntry) RegionID() uint32 { return o.regionID }

// Offset returns the object's byte offset within its region.
func (o *ObjectEntry) Offset() uint64 { return o.offset }

// State returns the object's current lifecycle state (acquire load).
func (o *ObjectEntry) State() ObjectState { return ObjectState(atomic.LoadUint32(&o.state)) }

// Label returns the object's human-readable label.
func (o *ObjectEntry) Label() string { return getPaddedName(o.label[:]) }

// ObjectManager registers and destroys object instances, allocating their
// storage through a RegionManager and their metadata records through a
// MetadataManager. It is producer-only.
type ObjectManager struct {
	mu       sync.Mutex
	regions  *RegionManager
	meta     *MetadataManager
	types    *TypeRegistry
	header   *headerView
	byLabel  map[string]uint32
	byID     map[uint32]*ObjectEntry
	nextID   uint32
}

func newObjectManager(regions *RegionManager, meta *MetadataManager, types *TypeRegistry, header *headerView) *ObjectManager {
	return &ObjectManager{
		regions: regions,
		meta:    meta,
		types:   types,
		header:  header,
		byLabel: make(map[string]uint32),
		byID:    make(map[uint32]*ObjectEntry),
	}
}

// RegisterObject allocates storage for one instance of typeID, zero-fills
// it, records it under label, and marks it live. Registering a label that
// a live object already holds is rejected with ErrNameConflict; once that
// object is destroyed, its label may be registered again.
func (om *ObjectManager) RegisterObject(label string, typeID TypeID) (*ObjectEntry, error) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if _, exists := om.byLabel[label]; exists {
		return nil, fmt.Errorf("%w: object label %q already registered", ErrNameConflict, label)
	}

	typ := om.types.Lookup(typeID)
	if typ == nil {
		return nil, fmt.Errorf("%w: type id %d is not registered", ErrInvalidObject, typeID)
	}

	ptr, err := om.regions.Allocate(typ.Size(), uint64(typ.Alignment()))
	if err != nil {
		return nil, fmt.Errorf("register object %q: %w", label, err)
	}
	regionID, offset, ok := om.regions.GetLocation(ptr)
	if !ok {
		return nil, fmt.Errorf("%w: allocated object storage resolved to no known region", ErrInvalidObject)
	}

	entry, _, _, err := om.meta.AllocateObjectEntry()
	if err != nil {
		return nil, fmt.Errorf("register object %q: %w", label, err)
	}

	om.nextID++
	entry.objectID = om.nextID
	entry.typeID = uint32(typeID)
	entry.regionID = regionID
	entry.offset = offset
	putPaddedName(entry.label[:], label)
	atomic.StoreUint32(&entry.state, uint32(StateLive))

	om.header.header().bumpSequence()
	om.byLabel[label] = entry.objectID
	om.byID[entry.objectID] = entry
	return entry, nil
}

// DestroyObject marks the object registered under label as destroyed.
// Storage is never reclaimed within the session's lifetime (spec.md §4.F
// Non-goals); the slot's state transition is the only visible effect.
func (om *ObjectManager) DestroyObject(label string) error {
	om.mu.Lock()
	defer om.mu.Unlock()

	id, ok := om.byLabel[label]
	if !ok {
		return fmt.Errorf("%w: object label %q not found", ErrInvalidObject, label)
	}

	entry := om.byID[id]
	if entry == nil {
		return fmt.Errorf("%w: object label %q resolved to no entry", ErrInvalidObject, label)
	}
	atomic.StoreUint32(&entry.state, uint32(StateDestroyed))
	delete(om.byLabel, label)
	om.header.header().bumpSequence()
	return nil
}
