package memglass

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Built-in primitive type ids occupy the reserved low range below
// primitiveTypeIDThreshold (spec.md §4.F). Structured types hash into the
// range above it.
const (
	TypeIDBool TypeID = 1 + iota
	TypeIDInt8
	TypeIDUint8
	TypeIDInt16
	TypeIDUint16
	TypeIDInt32
	TypeIDUint32
	TypeIDInt64
	TypeIDUint64
	TypeIDFloat32
	TypeIDFloat64
)

// TypeID is a stable 32-bit identifier for a registered type: either one of
// the reserved built-in primitive constants above, or the low 32 bits of
// xxhash64 of a structured type's fully-qualified name, moved up by
// primitiveTypeIDThreshold when those bits fall inside the reserved range.
type TypeID uint32

// TypeEntry is the fixed-size metadata record describing one registered
// type. It is written once by RegisterType, fieldCount included, and never
// mutated afterward.
type TypeEntry struct {
	typeID       uint32
	_pad         uint32
	size         uint64
	alignment    uint32
	fieldStoreID uint32 // 0 = header field directory, else overflow region id
	fieldIndex   uint32 // index of the first field entry in that store
	fieldCount   uint32
	name         [typeNameCap]byte
}

// TypeID returns the type's stable id.
func (t *TypeEntry) TypeID() TypeID { return TypeID(t.typeID) }

// Size returns the type's instance size in bytes.
func (t *TypeEntry) Size() uint64 { return t.size }

// Alignment returns the type's required alignment in bytes.
func (t *TypeEntry) Alignment() uint32 { return t.alignment }

// FieldCount returns the number of fields this type declares.
func (t *TypeEntry) FieldCount() uint32 { return t.fieldCount }

// Name returns the type's fully-qualified name.
func (t *TypeEntry) Name() string { return getPaddedName(t.name[:]) }

// FieldEntry is the fixed-size metadata record describing one field of a
// registered struct type: its name, the type it holds, its byte offset
// within an instance, its payload size, and the atomicity wrapper that
// guards it (spec.md §4.D, §4.E).
type FieldEntry struct {
	fieldTypeID uint32
	offset      uint32
	size        uint32
	atomicity   uint32
	name        [fieldNameCap]byte
}

// TypeID returns the id of the type this field holds.
func (f *FieldEntry) TypeID() TypeID { return TypeID(f.fieldTypeID) }

// Offset returns the field's byte offset within an object instance.
func (f *FieldEntry) Offset() uint32 { return f.offset }

// Size returns the field's payload size in bytes (excluding any atomicity
// control word).
func (f *FieldEntry) Size() uint32 { return f.size }

// Atomicity returns the atomicity wrapper guarding this field.
func (f *FieldEntry) Atomicity() AtomicityTag { return AtomicityTag(f.atomicity) }

// Name returns the field's name.
func (f *FieldEntry) Name() string { return getPaddedName(f.name[:]) }

// FieldSpec is the producer-supplied description of one field when
// registering a struct type.
type FieldSpec struct {
	Name      string
	TypeID    TypeID
	Offset    uint32
	Size      uint32
	Atomicity AtomicityTag
}

// hashTypeName derives a stable TypeID from a fully-qualified type name by
// folding xxhash64 down to 32 bits and shifting any accidental collision
// with the reserved primitive range out of the way.
func hashTypeName(name string) TypeID {
	h := uint32(xxhash.Sum64String(name))
	if h < primitiveTypeIDThreshold {
		h += primitiveTypeIDThreshold
	}
	return TypeID(h)
}

// TypeRegistry registers struct types and their field layouts into a
// session's metadata store. It is producer-only: observers read TypeEntry
// and FieldEntry records directly from their own mappings of the header and
// overflow regions, without going through this type.
type TypeRegistry struct {
	mu      sync.Mutex
	meta    *MetadataManager
	header  *headerView
	byName  map[string]TypeID
	entries map[TypeID]*TypeEntry
}

func newTypeRegistry(meta *MetadataManager, header *headerView) *TypeRegistry {
	return &TypeRegistry{
		meta:    meta,
		header:  header,
		byName:  make(map[string]TypeID),
		entries: make(map[TypeID]*TypeEntry),
	}
}

// RegisterType registers a struct type's layout, returning its stable
// TypeID. Re-registering the same name with an identical size, alignment,
// and field list is a no-op that returns the existing id (idempotent
// registration, spec.md §4.E); re-registering the same name with a
// different layout fails with ErrAlreadyRegistered.
func (tr *TypeRegistry) RegisterType(name string, size uint64, alignment uint32, fields []FieldSpec) (TypeID, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	id := hashTypeName(name)

	if existing, ok := tr.byName[name]; ok {
		if existing != id {
			return 0, fmt.Errorf("%w: type name %q hashed to a different id than its prior registration", ErrAlreadyRegistered, name)
		}
		entry := tr.entries[id]
		if entry.size != size || entry.alignment != alignment || entry.fieldCount != uint32(len(fields)) {
			return 0, fmt.Errorf("%w: type %q re-registered with a different layout", ErrAlreadyRegistered, name)
		}
		for i, fe := range tr.FieldsOf(entry) {
			spec := fields[i]
			var wantName [fieldNameCap]byte
			putPaddedName(wantName[:], spec.Name)
			if fe.name != wantName || fe.TypeID() != spec.TypeID || fe.offset != spec.Offset ||
				fe.size != spec.Size || fe.Atomicity() != spec.Atomicity {
				return 0, fmt.Errorf("%w: type %q re-registered with a different layout", ErrAlreadyRegistered, name)
			}
		}
		return id, nil
	}

	ref, err := tr.meta.AllocateFieldEntries(uint32(len(fields)))
	if err != nil {
		return 0, fmt.Errorf("register type %q: %w", name, err)
	}
	for i, spec := range fields {
		fe := tr.meta.fieldEntry(ref.storeID, ref.index+uint32(i))
		fe.fieldTypeID = uint32(spec.TypeID)
		fe.offset = spec.Offset
		fe.size = spec.Size
		fe.atomicity = uint32(spec.Atomicity)
		putPaddedName(fe.name[:], spec.Name)
	}

	entry, _, _, err := tr.meta.AllocateTypeEntry()
	if err != nil {
		return 0, fmt.Errorf("register type %q: %w", name, err)
	}
	entry.typeID = uint32(id)
	entry.size = size
	entry.alignment = alignment
	entry.fieldStoreID = ref.storeID
	entry.fieldIndex = ref.index
	entry.fieldCount = uint32(len(fields))
	putPaddedName(entry.name[:], name)

	tr.header.header().bumpSequence()

	tr.byName[name] = id
	tr.entries[id] = entry
	return id, nil
}

// Lookup returns the TypeEntry for a previously registered TypeID, or nil
// if it is unknown to this registry instance.
func (tr *TypeRegistry) Lookup(id TypeID) *TypeEntry {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.entries[id]
}

// FieldsOf returns the field entries declared by a TypeEntry, resolved
// through the owning metadata manager.
func (tr *TypeRegistry) FieldsOf(entry *TypeEntry) []*FieldEntry {
	out := make([]*FieldEntry, entry.fieldCount)
	for i := range out {
		out[i] = tr.meta.fieldEntry(entry.fieldStoreID, entry.fieldIndex+uint32(i))
	}
	return out
}
