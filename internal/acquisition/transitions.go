package acquisition

import (
	"sort"

	"booklending/internal/domain"
)

// Validator decides whether a status change is allowed.
type Validator interface {
	IsValid(from, to domain.AcquisitionStatus) bool
}

// TransitionTable is an immutable set of allowed status changes.
// The zero value allows nothing.
type TransitionTable struct {
	next map[domain.AcquisitionStatus]map[domain.AcquisitionStatus]struct{}
}

// NewTransitionTable copies edges; later changes to edges do not affect the table.
func NewTransitionTable(edges map[domain.AcquisitionStatus][]domain.AcquisitionStatus) TransitionTable {
	next := make(map[domain.AcquisitionStatus]map[domain.AcquisitionStatus]struct{}, len(edges))
	for from, targets := range edges {
		set := make(map[domain.AcquisitionStatus]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		next[from] = set
	}
	return TransitionTable{next: next}
}

// DefaultTransitions is the acquisition workflow:
//
//	REQUESTED        -> REJECTED, PENDING_PURCHASE
//	REJECTED         -> PENDING_PURCHASE
//	PENDING_PURCHASE -> REJECTED, IN_STOCK
//	IN_STOCK         -> (terminal)
func DefaultTransitions() TransitionTable {
	return NewTransitionTable(map[domain.AcquisitionStatus][]domain.AcquisitionStatus{
		domain.StatusRequested:       {domain.StatusRejected, domain.StatusPendingPurchase},
		domain.StatusRejected:        {domain.StatusPendingPurchase},
		domain.StatusPendingPurchase: {domain.StatusRejected, domain.StatusInStock},
		domain.StatusInStock:         {},
	})
}

// IsValid reports whether from -> to is in the table. Self-loops are not special-cased.
func (t TransitionTable) IsValid(from, to domain.AcquisitionStatus) bool {
	_, ok := t.next[from][to]
	return ok
}

// Targets lists the statuses reachable from from, sorted.
func (t TransitionTable) Targets(from domain.AcquisitionStatus) []domain.AcquisitionStatus {
	out := make([]domain.AcquisitionStatus, 0, len(t.next[from]))
	for to := range t.next[from] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
