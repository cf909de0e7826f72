// Command memglass-inspect attaches to a running session by name and
// prints its sequence number and its registered types and objects — a read-only
// diagnostic, not a designed CLI surface. It parses exactly one positional
// argument and nothing else.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/HFTrader/memglass"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <session-name>\n", os.Args[0])
		os.Exit(2)
	}

	obs, err := memglass.Connect(os.Args[1])
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	fmt.Printf("=== Session %q ===\n", os.Args[1])
	fmt.Printf("sequence: %d\n", obs.Sequence())

	types := obs.Types()
	fmt.Printf("\n=== Types (%d) ===\n", len(types))
	for _, t := range types {
		fmt.Printf("  %-32s id=%#x size=%d fields=%d\n", t.Name(), uint32(t.TypeID()), t.Size(), t.FieldCount())
	}

	objects := obs.Objects()
	fmt.Printf("\n=== Objects (%d) ===\n", len(objects))
	for _, o := range objects {
		fmt.Printf("  %-24s type=%#x region=%d offset=%d state=%s\n",
			o.Label(), uint32(o.TypeID()), o.RegionID(), o.Offset(), o.State())
	}
}
