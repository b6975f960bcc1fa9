package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/langchou/bluegazer/internal/api/bluelink"
	"github.com/langchou/bluegazer/internal/config"
	"github.com/langchou/bluegazer/internal/models"
)

// localDay 返回本地时区里 offset 天前的零点
func localDay(offset int) time.Time {
	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.AddDate(0, 0, -offset)
}

func backfillSnapshot(vehicleID string, days ...time.Time) *bluelink.VehicleSnapshot {
	snap := &bluelink.VehicleSnapshot{
		VehicleID:     vehicleID,
		Name:          "My EV",
		Model:         "Ioniq5",
		LastUpdatedAt: time.Now(),
	}
	for _, d := range days {
		snap.DailyStats = append(snap.DailyStats, bluelink.DailyStatEntry{Date: d, Distance: 10})
	}
	return snap
}

func TestBackfillExcludesToday(t *testing.T) {
	today := localDay(0)
	yesterday := localDay(1)
	f := newFixture(backfillSnapshot("ext-123", today, yesterday))
	f.client.dayTrips["ext-123:"+yesterday.Format(dayKeyLayout)] = []bluelink.TripEntry{
		{TripTime: "081500", DriveTime: 20, IdleTime: 2, Distance: 12, AvgSpeed: 36, MaxSpeed: 80},
	}

	f.collector.RunBackfill(context.Background())

	if len(f.client.tripFetches) != 1 {
		t.Fatalf("expected exactly 1 trip fetch, got %v", f.client.tripFetches)
	}
	if f.client.tripFetches[0] != "ext-123:"+yesterday.Format(dayKeyLayout) {
		t.Errorf("fetched wrong day: %s", f.client.tripFetches[0])
	}
	if len(f.trips.rows) != 1 {
		t.Fatalf("expected 1 trip segment, got %d", len(f.trips.rows))
	}
	for _, seg := range f.trips.rows {
		want := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 8, 15, 0, 0, yesterday.Location())
		if !seg.Time.Equal(want) {
			t.Errorf("segment not anchored to day clock time: got %v, want %v", seg.Time, want)
		}
		if !seg.Day.Equal(yesterday) {
			t.Errorf("segment day mismatch: %v", seg.Day)
		}
	}
}

func TestBackfillSkipsRecordedDays(t *testing.T) {
	yesterday := localDay(1)
	dayBefore := localDay(2)
	f := newFixture(backfillSnapshot("ext-123", yesterday, dayBefore))
	ctx := context.Background()

	// 预先落库：昨天已有行程记录
	carID, err := f.cars.Resolve(ctx, "ext-123", "My EV", "Ioniq5")
	if err != nil {
		t.Fatal(err)
	}
	f.trips.rows[factKey{carID, yesterday.Add(9 * time.Hour)}] = &models.TripSegment{
		CarID: carID, Time: yesterday.Add(9 * time.Hour), Day: yesterday,
	}

	f.collector.RunBackfill(ctx)

	if len(f.client.tripFetches) != 1 {
		t.Fatalf("expected 1 trip fetch, got %v", f.client.tripFetches)
	}
	if f.client.tripFetches[0] != "ext-123:"+dayBefore.Format(dayKeyLayout) {
		t.Errorf("should only fetch the unrecorded day, got %s", f.client.tripFetches[0])
	}
}

func TestBackfillIdempotent(t *testing.T) {
	yesterday := localDay(1)
	f := newFixture(backfillSnapshot("ext-123", yesterday))
	f.client.dayTrips["ext-123:"+yesterday.Format(dayKeyLayout)] = []bluelink.TripEntry{
		{TripTime: "081500", DriveTime: 20, Distance: 12},
	}
	ctx := context.Background()

	f.collector.RunBackfill(ctx)
	f.collector.RunBackfill(ctx)

	if len(f.trips.rows) != 1 {
		t.Errorf("expected 1 trip segment after replay, got %d", len(f.trips.rows))
	}
	// 第二轮应视该日为已补齐，不再发起拉取
	if len(f.client.tripFetches) != 1 {
		t.Errorf("expected 1 trip fetch after replay, got %v", f.client.tripFetches)
	}
}

func TestBackfillAbortsRemainingDaysOnError(t *testing.T) {
	yesterday := localDay(1)
	dayBefore := localDay(2)
	f := newFixture(
		backfillSnapshot("ext-123", dayBefore, yesterday),
		backfillSnapshot("ext-456", yesterday),
	)
	// 较早的一天拉取失败，该车剩余日子应被放弃
	f.client.dayTripsErrs["ext-123:"+dayBefore.Format(dayKeyLayout)] = fmt.Errorf("upstream timeout")
	f.client.dayTrips["ext-456:"+yesterday.Format(dayKeyLayout)] = []bluelink.TripEntry{
		{TripTime: "120000", DriveTime: 5, Distance: 3},
	}

	f.collector.RunBackfill(context.Background())

	for _, fetch := range f.client.tripFetches {
		if fetch == "ext-123:"+yesterday.Format(dayKeyLayout) {
			t.Error("later day must not be fetched after an earlier day failed")
		}
	}
	// 另一辆车不受影响
	if len(f.trips.rows) != 1 {
		t.Errorf("expected 1 segment from the healthy vehicle, got %d", len(f.trips.rows))
	}
}

func TestBackfillRunsAreSerialized(t *testing.T) {
	yesterday := localDay(1)
	f := newFixture(backfillSnapshot("ext-123", yesterday))
	key := "ext-123:" + yesterday.Format(dayKeyLayout)
	f.client.dayTrips[key] = []bluelink.TripEntry{
		{TripTime: "081500", DriveTime: 20, Distance: 12},
	}
	f.client.fetchEntered = make(chan struct{}, 2)
	f.client.fetchGate = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.collector.RunBackfill(context.Background())
	}()
	// 第一轮已通过补齐检查、停在拉取上
	<-f.client.fetchEntered

	go func() {
		defer wg.Done()
		f.collector.RunBackfill(context.Background())
	}()
	// 给第二轮越过补齐检查的机会，之后放行第一轮
	time.Sleep(20 * time.Millisecond)
	close(f.client.fetchGate)
	wg.Wait()

	// 第二轮必须等第一轮写完，届时该日已补齐，不再拉取
	if len(f.client.tripFetches) != 1 {
		t.Fatalf("expected 1 trip fetch across concurrent runs, got %v", f.client.tripFetches)
	}
	if len(f.trips.rows) != 1 {
		t.Errorf("expected 1 trip segment, got %d", len(f.trips.rows))
	}
}

func TestBackfillDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	older := today.AddDate(0, 0, -3)
	tomorrow := today.AddDate(0, 0, 1)

	snap := backfillSnapshot("ext-123", today, yesterday, yesterday, older, tomorrow)
	days := backfillDays(snap, now)

	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %v", days)
	}
	if !days[0].Equal(older) || !days[1].Equal(yesterday) {
		t.Errorf("days not deduped and ascending: %v", days)
	}
}

func TestNextDueTime(t *testing.T) {
	times := []config.TimeOfDay{{Hour: 0, Minute: 30}, {Hour: 12, Minute: 30}}

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	next := nextDueTime(times, now)
	want := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next due at %v, want %v", next, want)
	}

	// 过了最后一个时刻后滚动到次日
	now = time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)
	next = nextDueTime(times, now)
	want = time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next due at %v, want %v", next, want)
	}
}
