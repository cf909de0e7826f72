// Package memglass publishes live instances of plain-data record types into
// shared memory so that observer processes mapping the same memory can
// introspect those instances by field name and type, without serialization
// and without stopping the producer.
//
// A producer opens a Context, registers record schemas through RegisterType,
// and publishes instances through RegisterObject. Field writes happen
// directly on the object's shared bytes; fields that need cross-process
// consistency are tagged with an AtomicityTag (AtomicityAtomic,
// AtomicitySeqlock, or AtomicityLocked) and written through the matching
// wrapper functions (AtomicStore, GuardedWrite, LockedWrite).
//
// An observer opens a Connect to the same session by name, walks the type
// and object directories, and reads fields through FieldProxy values that
// dispatch on the field's recorded atomicity tag.
package memglass
