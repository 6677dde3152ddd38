// Package flow implements C3 FlowRuleEngine. Real NIC hardware flow
// steering (rte_flow in the original DPDK source, see
// original_source/src/FlowControl.cpp) has no equivalent DPDK-bypass
// library in the Go ecosystem, so this package keeps the exact rule
// model and contract from spec.md §4.3 — ordered priority-0 per-source
// steering rules plus an optional priority-1 drop-all — but backs it
// with a software classifier (Table.Classify) instead of a hardware
// filter. internal/ifacewrapper installs and flushes the rules; the
// receive engine does not call Classify, so a queue receives whatever
// its capture source delivers. See DESIGN.md for this Open Question
// decision. Handles are github.com/google/uuid values identifying each
// installed rule, mirroring how the teacher identifies ephemeral objects
// (pcap/stream.go's bidirectional flow IDs) with uuid; rules are removed
// only by flushing an interface's whole table.
package flow

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle identifies one installed rule so it can be referenced later
// (though this design only ever flushes a whole interface's table).
type Handle = uuid.UUID

// Rule is one ingress flow rule: pattern ETH + IPv4(src_addr & SrcMask ==
// SrcIP), action QUEUE(RxQ) when Drop is false, action DROP when Drop is
// true. Priority 0 is steering, priority 1 is the catch-all drop rule,
// per spec.md §4.3.
type Rule struct {
	ID       Handle
	Priority int
	SrcIP    uint32
	SrcMask  uint32
	RxQ      int
	Drop     bool
}

// matches reports whether srcIP satisfies this rule's pattern. A SrcMask
// of 0xFFFFFFFF requires an exact match; a SrcMask of 0 is a wildcard
// that matches any source, per spec.md §4.3's edge cases.
func (r Rule) matches(srcIP uint32) bool {
	return srcIP&r.SrcMask == r.SrcIP&r.SrcMask
}

// Table is the ordered list of installed flow rules for one interface,
// spec.md §3's FlowTable.
type Table struct {
	rules []Rule
}

// Rules returns a copy of the installed rule set, ordered by the
// priority they were installed at (steering rules before the drop-all).
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Classify returns the rx-queue a packet with the given source IP steers
// to, and whether it matched a steering (non-drop) rule at all. The
// first matching rule wins, consistent with priority 0 rules being
// installed before the priority 1 drop-all.
func (t *Table) Classify(srcIP uint32) (rxQ int, ok bool) {
	for _, r := range t.rules {
		if r.matches(srcIP) {
			if r.Drop {
				return 0, false
			}
			return r.RxQ, true
		}
	}
	return 0, false
}

// Engine owns one Table per interface and validates rules before
// installing them, per spec.md §4.3: "The rule is validated before
// creation; validation failure is fatal for conf."
type Engine struct {
	tables map[string]*Table
}

func NewEngine() *Engine {
	return &Engine{tables: map[string]*Table{}}
}

func (e *Engine) table(iface string) *Table {
	t, ok := e.tables[iface]
	if !ok {
		t = &Table{}
		e.tables[iface] = t
	}
	return t
}

// Flush removes all installed flow rules on iface.
func (e *Engine) Flush(iface string) {
	e.tables[iface] = &Table{}
}

// ValidationError is returned by SteerSrcIP when a rule cannot be
// installed; DropRemainder always succeeds. internal/ifacewrapper
// reports it as a fatal ingesterr.FlowRuleRejected.
type ValidationError struct {
	Iface  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flow rule rejected on %s: %s", e.Iface, e.Reason)
}

func validate(r Rule) error {
	if !r.Drop && r.RxQ < 0 {
		return fmt.Errorf("negative rx queue %d", r.RxQ)
	}
	return nil
}

// SteerSrcIP installs an ingress rule at priority 0 mapping srcIP
// (masked by srcMask) to rxQ, per spec.md §4.3.
func (e *Engine) SteerSrcIP(iface string, rxQ int, srcIP, srcMask uint32) (Handle, error) {
	r := Rule{ID: uuid.New(), Priority: 0, SrcIP: srcIP, SrcMask: srcMask, RxQ: rxQ}
	if err := validate(r); err != nil {
		return Handle{}, &ValidationError{Iface: iface, Reason: err.Error()}
	}
	t := e.table(iface)
	t.rules = append(t.rules, r)
	return r.ID, nil
}

// DropRemainder installs a priority-1 catch-all drop rule, intended to
// discard anything that did not match a higher-priority steering rule.
func (e *Engine) DropRemainder(iface string) (Handle, error) {
	r := Rule{ID: uuid.New(), Priority: 1, Drop: true}
	t := e.table(iface)
	t.rules = append(t.rules, r)
	return r.ID, nil
}

// Table exposes the interface's rule table for the receive engine's
// software classifier to consult.
func (e *Engine) Table(iface string) *Table {
	return e.table(iface)
}
