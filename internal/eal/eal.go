// Package eal stands in for the DPDK Environment Abstraction Layer
// lifetime: a process-singleton init/teardown pair bound on the
// outermost lifecycle edges, per spec.md §9's re-architecture note
// ("Global EAL state -> a process-singleton EngineRoot with explicit
// init/teardown on the outermost lifecycle edges; no implicit
// constructor ordering"). There is no real EAL in this Go rewrite (see
// DESIGN.md); this package still owns the EALArgs artifact from spec.md
// §3 and the single init/teardown transition EngineRoot drives, since
// spec.md requires both to exist as observable steps.
package eal

import (
	"fmt"
	"strings"
	"sync"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/logging"
)

// BuildArgs constructs the ordered EAL argument list from spec.md §3:
// a primary-process flag, one "-a <pci>" per NIC in the order given,
// and a file-prefix derived from the first NIC's PCI address.
func BuildArgs(pciAddrs []string) ([]string, error) {
	if len(pciAddrs) == 0 {
		return nil, fmt.Errorf("eal: at least one PCI address is required")
	}
	args := []string{"--proc-type=primary"}
	for _, pci := range pciAddrs {
		args = append(args, "-a", pci)
	}
	prefix := strings.NewReplacer(":", "_", ".", "_").Replace(pciAddrs[0])
	args = append(args, "--file-prefix="+prefix)
	return args, nil
}

var (
	mu       sync.Mutex
	bound    bool
	boundArgs []string
)

// InitFailed is returned when the runtime environment itself does not
// come up; fatal for the whole process, per spec.md §7.
type InitFailed struct {
	Reason string
}

func (e *InitFailed) Error() string { return "EAL init failed: " + e.Reason }

// Init binds the EAL once per process. A second call with the same args
// is a no-op; a second call with different args is an error, since the
// real EAL has no notion of reconfiguring itself.
func Init(args []string) error {
	mu.Lock()
	defer mu.Unlock()
	if bound {
		if !equalArgs(boundArgs, args) {
			return &InitFailed{Reason: "EAL already bound with different arguments"}
		}
		return nil
	}
	if len(args) == 0 {
		return &InitFailed{Reason: "empty EAL argument list"}
	}
	logging.Infof("binding EAL with args: %s\n", strings.Join(args, " "))
	boundArgs = append([]string{}, args...)
	bound = true
	return nil
}

// Teardown releases the process-singleton EAL binding so a later Init
// (e.g. in a fresh test) can rebind. It is idempotent.
func Teardown() {
	mu.Lock()
	defer mu.Unlock()
	bound = false
	boundArgs = nil
}

// Bound reports whether Init has successfully bound the EAL.
func Bound() bool {
	mu.Lock()
	defer mu.Unlock()
	return bound
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
