package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"booklending/internal/domain"
)

func TestDefaultTransitions(t *testing.T) {
	table := DefaultTransitions()
	all := []domain.AcquisitionStatus{
		domain.StatusRequested, domain.StatusRejected, domain.StatusPendingPurchase, domain.StatusInStock,
	}
	allowed := map[[2]domain.AcquisitionStatus]bool{
		{domain.StatusRequested, domain.StatusRejected}:        true,
		{domain.StatusRequested, domain.StatusPendingPurchase}: true,
		{domain.StatusRejected, domain.StatusPendingPurchase}:  true,
		{domain.StatusPendingPurchase, domain.StatusRejected}:  true,
		{domain.StatusPendingPurchase, domain.StatusInStock}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]domain.AcquisitionStatus{from, to}], table.IsValid(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, table.IsValid(domain.StatusInStock, domain.StatusArchived))
}

func TestTransitionTable_Targets(t *testing.T) {
	table := DefaultTransitions()

	assert.Equal(t, []domain.AcquisitionStatus{domain.StatusPendingPurchase, domain.StatusRejected}, table.Targets(domain.StatusRequested))
	assert.Equal(t, []domain.AcquisitionStatus{domain.StatusPendingPurchase}, table.Targets(domain.StatusRejected))
	assert.Empty(t, table.Targets(domain.StatusInStock))
	assert.Empty(t, table.Targets("UNKNOWN"))
}

func TestNewTransitionTable_CopiesInput(t *testing.T) {
	edges := map[domain.AcquisitionStatus][]domain.AcquisitionStatus{
		domain.StatusRequested: {domain.StatusRejected},
	}
	table := NewTransitionTable(edges)

	edges[domain.StatusRequested][0] = domain.StatusInStock
	edges[domain.StatusInStock] = []domain.AcquisitionStatus{domain.StatusRequested}

	assert.True(t, table.IsValid(domain.StatusRequested, domain.StatusRejected))
	assert.False(t, table.IsValid(domain.StatusRequested, domain.StatusInStock))
	assert.False(t, table.IsValid(domain.StatusInStock, domain.StatusRequested))

	// Mutating the returned slice does not reach the table either.
	targets := table.Targets(domain.StatusRequested)
	targets[0] = domain.StatusArchived
	assert.Equal(t, []domain.AcquisitionStatus{domain.StatusRejected}, table.Targets(domain.StatusRequested))
}

func TestTransitionTable_ZeroValue(t *testing.T) {
	var table TransitionTable
	assert.False(t, table.IsValid(domain.StatusRequested, domain.StatusRejected))
	assert.Empty(t, table.Targets(domain.StatusRequested))
}
