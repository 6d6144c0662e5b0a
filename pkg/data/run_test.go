package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRun_ListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		r := &Run{
			Version:        i,
			Metric:         float64(40 + i),
			Count:          10 * i,
			WeakPct:        0.1,
			StrongPct:      0.2,
			Promoted:       i%2 == 1,
			CounterUpdated: true,
			BestVersion:    i,
			ReportKey:      "reports/metrics.json",
			Location:       "bkt",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, SaveRun(db, r))
		assert.NotEmpty(t, r.ID)
	}

	list, err := ListRuns(db, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, 3, list[0].Version)
	assert.Equal(t, 1, list[2].Version)
	assert.True(t, list[0].Promoted)
	assert.False(t, list[1].Promoted)
	assert.True(t, list[0].CounterUpdated)
	assert.False(t, list[0].Degraded)
	assert.Equal(t, 43.0, list[0].Metric)
	assert.Equal(t, 30, list[0].Count)
	assert.Equal(t, "bkt", list[0].Location)
	assert.True(t, base.Add(3*time.Minute).Equal(list[0].CreatedAt))

	list, err = ListRuns(db, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSaveRun_DefaultsCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	r := &Run{Version: 1}
	require.NoError(t, SaveRun(db, r))
	assert.False(t, r.CreatedAt.IsZero())
}

func TestSaveRun_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	id := NewRunID()
	require.NoError(t, SaveRun(db, &Run{ID: id, Version: 1}))
	assert.Error(t, SaveRun(db, &Run{ID: id, Version: 2}))
}

func TestSaveRun_Invalid(t *testing.T) {
	assert.Error(t, SaveRun(nil, &Run{}))

	db := setupTestDB(t)
	assert.Error(t, SaveRun(db, nil))
	assert.Error(t, SaveRun(db, &Run{ID: "not-a-uuid"}))
}

func TestListRuns_NilDB(t *testing.T) {
	_, err := ListRuns(nil, 1)
	assert.Error(t, err)
}

func TestListRuns_Empty(t *testing.T) {
	db := setupTestDB(t)
	list, err := ListRuns(db, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
