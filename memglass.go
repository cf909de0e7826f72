// Package memglass is the public entry point for the shared-memory
// telemetry substrate implemented in internal/memglass. It re-exports the
// handful of types and functions most callers need so that a producer or
// observer never has to import the internal package directly.
package memglass

import (
	core "github.com/HFTrader/memglass/internal/memglass"
)

// Re-exported types. See the internal/memglass package for their full
// documentation.
type (
	Config      = core.Config
	Context     = core.Context
	Observer    = core.Observer
	ObjectView  = core.ObjectView
	FieldProxy  = core.FieldProxy
	TypeEntry   = core.TypeEntry
	FieldEntry  = core.FieldEntry
	ObjectEntry = core.ObjectEntry
	FieldSpec   = core.FieldSpec
	TypeID      = core.TypeID
	ObjectState = core.ObjectState
	AtomicityTag = core.AtomicityTag
	FieldPath   = core.FieldPath
)

// Re-exported atomicity and lifecycle constants.
const (
	AtomicityNone    = core.AtomicityNone
	AtomicityAtomic  = core.AtomicityAtomic
	AtomicitySeqlock = core.AtomicitySeqlock
	AtomicityLocked  = core.AtomicityLocked
	StateFree        = core.StateFree
	StateLive        = core.StateLive
	StateDestroyed   = core.StateDestroyed
)

// Re-exported built-in primitive type ids, for FieldSpec.TypeID.
const (
	TypeIDBool    = core.TypeIDBool
	TypeIDInt8    = core.TypeIDInt8
	TypeIDUint8   = core.TypeIDUint8
	TypeIDInt16   = core.TypeIDInt16
	TypeIDUint16  = core.TypeIDUint16
	TypeIDInt32   = core.TypeIDInt32
	TypeIDUint32  = core.TypeIDUint32
	TypeIDInt64   = core.TypeIDInt64
	TypeIDUint64  = core.TypeIDUint64
	TypeIDFloat32 = core.TypeIDFloat32
	TypeIDFloat64 = core.TypeIDFloat64
)

// DefaultConfig returns a Config for session with the package's default
// sizing. Callers needing non-default sizing or grace periods should
// override individual fields on the returned value.
func DefaultConfig(session string) Config { return core.DefaultConfig(session) }

// Init creates a new producer session and returns its Context.
func Init(cfg Config) (*Context, error) { return core.Init(cfg) }

// Connect attaches an Observer to an existing session by name.
func Connect(session string) (*Observer, error) { return core.Connect(session) }

// SplitFieldPath splits a dotted field name into its display group and
// leaf field name.
func SplitFieldPath(full string) FieldPath { return core.SplitFieldPath(full) }
