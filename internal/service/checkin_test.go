package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

const organizer uint = 1

func newCheckinFixture(t *testing.T, from, to string) (*CheckinService, domain.Event, []domain.Registration) {
	t.Helper()
	repos := newTestRepos(t)
	event, regs := seedEvent(t, repos, organizer, from, to, "ada", "grace", "linus")
	svc := NewCheckinService(repos.checkins, repos.events, prometheus.NewRegistry())
	return svc, event, regs
}

func target(event domain.Event, reg domain.Registration, day domain.DayKey) CheckinTarget {
	return CheckinTarget{OwnerID: organizer, EventID: event.ID, RegistrationID: reg.ID, Day: day}
}

func TestToggleIsAnInvolution(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-01")
	ctx := context.Background()
	key := domain.CheckinKey{RegistrationID: regs[0].ID, DayKey: domain.CollectiveDay}

	status, err := svc.StatusOf(ctx, organizer, key)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinUndone, status)

	first, err := svc.Toggle(ctx, target(event, regs[0], domain.CollectiveDay), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinDone, first.Status)
	require.NotNil(t, first.CheckedInAt)
	require.NotNil(t, first.CheckedInBy)
	assert.Equal(t, uint(7), *first.CheckedInBy)
	assert.Equal(t, "All days", first.DayLabel)

	second, err := svc.Toggle(ctx, target(event, regs[0], domain.CollectiveDay), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinUndone, second.Status)
	assert.Nil(t, second.CheckedInAt)
	assert.Nil(t, second.CheckedInBy)
	assert.Equal(t, first.ID, second.ID)

	status, err = svc.StatusOf(ctx, organizer, key)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinUndone, status)

	assert.Equal(t, 2.0, testutil.ToFloat64(svc.transitions.WithLabelValues("toggle", "done"))+
		testutil.ToFloat64(svc.transitions.WithLabelValues("toggle", "undone")))
}

func TestSetStatusIsIdempotent(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-02")
	ctx := context.Background()
	tgt := target(event, regs[1], "2024-06-02")

	first, err := svc.SetStatus(ctx, tgt, domain.CheckinDone, 7, "scanned")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.SetStatus(ctx, tgt, domain.CheckinDone, 8, "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.CheckinDone, second.Status)
	assert.Equal(t, uint(7), *second.CheckedInBy)
	assert.True(t, first.CheckedInAt.Equal(*second.CheckedInAt))
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	assert.Equal(t, "scanned", second.Notes)
	assert.Equal(t, "Day 2 (Jun 2)", second.DayLabel)

	rows, err := svc.BatchStatus(ctx, organizer, []uint{regs[1].ID})
	require.NoError(t, err)
	assert.Len(t, rows[regs[1].ID], 1)

	undone, err := svc.SetStatus(ctx, tgt, domain.CheckinUndone, 7, "")
	require.NoError(t, err)
	assert.Nil(t, undone.CheckedInAt)

	_, err = svc.SetStatus(ctx, tgt, "maybe", 7, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDayScoping(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-02")
	ctx := context.Background()

	_, err := svc.Toggle(ctx, target(event, regs[0], domain.CollectiveDay), 7)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Toggle(ctx, target(event, regs[0], "2024-06-05"), 7)
	assert.ErrorIs(t, err, domain.ErrValidation)

	day1, err := svc.Toggle(ctx, target(event, regs[0], "2024-06-01"), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinDone, day1.Status)

	// the second day is an independent key
	status, err := svc.StatusOf(ctx, organizer, domain.CheckinKey{RegistrationID: regs[0].ID, DayKey: "2024-06-02"})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckinUndone, status)

	svc.now = func() time.Time { return date("2024-06-02").Add(9 * time.Hour) }
	today, err := svc.SetStatus(ctx, CheckinTarget{OwnerID: organizer, EventID: event.ID, RegistrationID: regs[0].ID, UseDefaultDay: true}, domain.CheckinDone, 7, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DayKey("2024-06-02"), today.DayKey)

	svc.now = func() time.Time { return date("2024-07-01") }
	_, err = svc.SetStatus(ctx, CheckinTarget{OwnerID: organizer, EventID: event.ID, RegistrationID: regs[0].ID, UseDefaultDay: true}, domain.CheckinDone, 7, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckinRequiresActorAndOwnership(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-01")
	ctx := context.Background()

	_, err := svc.Toggle(ctx, target(event, regs[0], domain.CollectiveDay), 0)
	assert.ErrorIs(t, err, domain.ErrAuth)

	other := target(event, regs[0], domain.CollectiveDay)
	other.OwnerID = 2
	_, err = svc.Toggle(ctx, other, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	missing := target(event, regs[0], domain.CollectiveDay)
	missing.RegistrationID = 9999
	_, err = svc.Toggle(ctx, missing, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBulkToggleIsBestEffort(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-01")
	ctx := context.Background()

	result, err := svc.BulkToggle(ctx, organizer, event.ID, []uint{regs[0].ID, 9999, regs[2].ID}, domain.CollectiveDay, 7)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, regs[0].ID, result.Succeeded[0].RegistrationID)
	assert.Equal(t, regs[2].ID, result.Succeeded[1].RegistrationID)
	assert.Contains(t, result.Failed, uint(9999))

	_, err = svc.BulkToggle(ctx, organizer, event.ID, nil, domain.CollectiveDay, 7)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBatchStatusMatchesSingleLookups(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-03")
	ctx := context.Background()

	for _, day := range []domain.DayKey{"2024-06-01", "2024-06-03"} {
		_, err := svc.Toggle(ctx, target(event, regs[0], day), 7)
		require.NoError(t, err)
	}
	_, err := svc.Toggle(ctx, target(event, regs[1], "2024-06-02"), 7)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, target(event, regs[1], "2024-06-02"), 7)
	require.NoError(t, err)

	ids := []uint{regs[0].ID, regs[1].ID, regs[2].ID}
	batch, err := svc.BatchStatus(ctx, organizer, ids)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
	assert.Len(t, batch[regs[0].ID], 2)
	assert.Len(t, batch[regs[1].ID], 1)
	assert.Empty(t, batch[regs[2].ID])

	for id, rows := range batch {
		for _, row := range rows {
			single, err := svc.repo.Find(ctx, organizer, domain.CheckinKey{RegistrationID: id, DayKey: row.DayKey})
			require.NoError(t, err)
			assert.Equal(t, single.ID, row.ID)
			assert.Equal(t, single.Status, row.Status)

			status, err := svc.StatusOf(ctx, organizer, row.Key())
			require.NoError(t, err)
			assert.Equal(t, row.Status, status)
		}
	}
}

func TestConcurrentSetStatusKeepsOneRow(t *testing.T) {
	svc, event, regs := newCheckinFixture(t, "2024-06-01", "2024-06-01")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SetStatus(ctx, target(event, regs[0], domain.CollectiveDay), domain.CheckinDone, 7, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := svc.BatchStatus(ctx, organizer, []uint{regs[0].ID})
	require.NoError(t, err)
	assert.Len(t, rows[regs[0].ID], 1)
	assert.Zero(t, svc.locks.size())
}

func TestKeyLockSerializesSameKey(t *testing.T) {
	l := newKeyLock[string]()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("k")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.size())
}
