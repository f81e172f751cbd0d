package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type mockBatchRepo struct {
	paidCount  int
	frozenName string
	assigned   map[string]string
}

func (m *mockBatchRepo) CountPaid(ctx context.Context) (int, error) {
	return m.paidCount, nil
}

func (m *mockBatchRepo) MarkPaidAndAssignBatch(ctx context.Context, id string, computeBatch func(paidCount int) string) (string, error) {
	if m.frozenName != "" {
		return m.frozenName, nil
	}
	name := computeBatch(m.paidCount)
	if m.assigned == nil {
		m.assigned = make(map[string]string)
	}
	m.assigned[id] = name
	m.paidCount++
	return name, nil
}

func TestComputeAssignmentCapacityBoundaries(t *testing.T) {
	tests := []struct {
		paidCount     int
		wantName      string
		wantNumber    int
		wantSlots     int
		wantEnrollees int
	}{
		{0, "Batch 1", 1, 20, 0},
		{1, "Batch 1", 1, 19, 1},
		{19, "Batch 1", 1, 1, 19},
		{20, "Batch 2", 2, 20, 0},
		{39, "Batch 2", 2, 1, 19},
		{40, "Batch 3", 3, 20, 0},
	}
	for _, tc := range tests {
		got := computeAssignment(tc.paidCount, 20)
		assert.Equal(t, tc.wantName, got.BatchName, "paidCount=%d", tc.paidCount)
		assert.Equal(t, tc.wantNumber, got.BatchNumber, "paidCount=%d", tc.paidCount)
		assert.Equal(t, tc.wantSlots, got.SlotsRemaining, "paidCount=%d", tc.paidCount)
		assert.Equal(t, tc.wantEnrollees, got.EnrolleeCount, "paidCount=%d", tc.paidCount)
	}
}

func TestBatchPreviewDerivesFromFreshCount(t *testing.T) {
	repo := &mockBatchRepo{paidCount: 19}
	svc := NewBatchService(repo, 20, nil)

	preview, err := svc.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Batch 1", preview.BatchName)
	assert.Equal(t, 1, preview.SlotsRemaining)

	repo.paidCount = 20
	preview, err = svc.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Batch 2", preview.BatchName)
	assert.Equal(t, 20, preview.SlotsRemaining)
}

func TestBatchAssignFillsSequentially(t *testing.T) {
	repo := &mockBatchRepo{paidCount: 18}
	svc := NewBatchService(repo, 20, nil)

	first, err := svc.Assign(context.Background(), "enr-19")
	require.NoError(t, err)
	assert.Equal(t, "Batch 1", first.BatchName)

	second, err := svc.Assign(context.Background(), "enr-20")
	require.NoError(t, err)
	assert.Equal(t, "Batch 1", second.BatchName)
	assert.Equal(t, 1, second.SlotsRemaining)

	third, err := svc.Assign(context.Background(), "enr-21")
	require.NoError(t, err)
	assert.Equal(t, "Batch 2", third.BatchName)
}

func TestBatchAssignKeepsFrozenName(t *testing.T) {
	repo := &mockBatchRepo{paidCount: 50, frozenName: "Batch 1"}
	svc := NewBatchService(repo, 20, nil)

	got, err := svc.Assign(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "Batch 1", got.BatchName)
}

func TestBatchInvalidCapacity(t *testing.T) {
	svc := NewBatchService(&mockBatchRepo{}, 0, nil)

	_, err := svc.Preview(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCapacity))

	_, err = svc.Assign(context.Background(), "enr-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCapacity))
}
