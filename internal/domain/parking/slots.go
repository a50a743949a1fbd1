package parking

import "fmt"

// Slot pool sizes are fixed by the lot layout: EV1..EV5 and A1..A9.
const (
	EVSlotPrefix      = "EV"
	RegularSlotPrefix = "A"
	EVSlotCount       = 5
	RegularSlotCount  = 9
)

// SlotRange enumerates prefix+from .. prefix+to inclusive, numeric suffix
// ascending.
func SlotRange(prefix string, from, to int) []string {
	if to < from {
		return nil
	}
	slots := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		slots = append(slots, fmt.Sprintf("%s%d", prefix, i))
	}
	return slots
}

// EVSlots returns the EV pool in ascending order.
func EVSlots() []string {
	return SlotRange(EVSlotPrefix, 1, EVSlotCount)
}

// RegularSlots returns the regular pool in ascending order.
func RegularSlots() []string {
	return SlotRange(RegularSlotPrefix, 1, RegularSlotCount)
}

// AllSlots returns every slot identifier, EV pool first.
func AllSlots() []string {
	return append(EVSlots(), RegularSlots()...)
}

// ExitMode selects how an exit closes the session record.
type ExitMode string

const (
	// ExitSoftClose stamps exit_time and keeps the row for history.
	ExitSoftClose ExitMode = "soft_close"
	// ExitHardDelete removes the active row entirely.
	ExitHardDelete ExitMode = "hard_delete"
)

// Policy parameterizes the allocation behavior that used to diverge between
// the per-gate capture scripts: regular-pool scan order, whether a full EV
// pool spills into the regular pool, and how exits close sessions.
type Policy struct {
	EVScanOrder         []string
	RegularScanOrder    []string
	EVFallbackToRegular bool
	ExitMode            ExitMode
}

// DefaultPolicy scans both pools in ascending order, keeps EVs out of the
// regular pool, and soft-closes on exit.
func DefaultPolicy() Policy {
	return Policy{
		EVScanOrder:         EVSlots(),
		RegularScanOrder:    RegularSlots(),
		EVFallbackToRegular: false,
		ExitMode:            ExitSoftClose,
	}
}

// WomenGatePolicy fills the regular slots nearest the women's entrance first
// (A6..A9 before A1..A5).
func WomenGatePolicy() Policy {
	p := DefaultPolicy()
	p.RegularScanOrder = append(SlotRange(RegularSlotPrefix, 6, 9), SlotRange(RegularSlotPrefix, 1, 5)...)
	return p
}

// ScanOrder returns the candidate slots for a vehicle in preference order.
func (p Policy) ScanOrder(isEV bool) []string {
	if !isEV {
		return p.RegularScanOrder
	}
	if !p.EVFallbackToRegular {
		return p.EVScanOrder
	}
	order := make([]string, 0, len(p.EVScanOrder)+len(p.RegularScanOrder))
	order = append(order, p.EVScanOrder...)
	return append(order, p.RegularScanOrder...)
}
