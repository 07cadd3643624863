package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
	"chargebook/internal/service"
	"chargebook/internal/ws"
)

type fakeLifecycle struct {
	mu        sync.Mutex
	booking   *models.Booking
	session   *models.ChargingSession
	price     float64
	promotion *models.Promotion
	progress  []Update
	completed bool
	stopped   bool
}

func newFakeLifecycle() *fakeLifecycle {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	startBattery := 20
	return &fakeLifecycle{
		booking: &models.Booking{
			ID:        "b-1",
			UserID:    7,
			StationID: 1,
			Status:    models.BookingStatusCharging,
		},
		session: &models.ChargingSession{
			BookingID:      "b-1",
			StartBattery:   &startBattery,
			BatteryPercent: 20,
			EnergyKWh:      0,
			StartedAt:      started,
		},
		price: 3500,
	}
}

func (f *fakeLifecycle) ChargingState(ctx context.Context, bookingID string) (*service.ChargingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.booking.Status != models.BookingStatusCharging {
		return nil, &apperrors.StateError{Attempted: "telemetry", Current: f.booking.Status}
	}
	booking := *f.booking
	session := *f.session
	return &service.ChargingState{
		Booking:     &booking,
		Session:     &session,
		PricePerKWh: f.price,
		Promotion:   f.promotion,
	}, nil
}

func (f *fakeLifecycle) RecordProgress(ctx context.Context, bookingID string, battery int, energyKWh, estimatedCost float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.StartBattery == nil {
		baseline := battery
		f.session.StartBattery = &baseline
	}
	f.session.BatteryPercent = battery
	f.session.EnergyKWh = energyKWh
	f.session.ActualCost = estimatedCost
	f.progress = append(f.progress, Update{EnergyKWh: energyKWh, BatteryPercent: battery})
	return nil
}

func (f *fakeLifecycle) Complete(ctx context.Context, bookingID string, finalEnergy float64, finalBattery int, stopped bool) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	f.stopped = stopped
	f.booking.Status = models.BookingStatusCompleted
	cost := finalEnergy * f.price
	f.booking.TotalCost = &cost
	booking := *f.booking
	return &booking, nil
}

func (f *fakeLifecycle) progressCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.progress)
}

func (f *fakeLifecycle) wasCompleted() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed, f.stopped
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (f *fakePublisher) Publish(bookingID string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) lastType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].Type
}

type fakeLiveStore struct {
	mu    sync.Mutex
	saves int
}

func (f *fakeLiveStore) Save(ctx context.Context, bookingID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}

func (f *fakeLiveStore) Delete(ctx context.Context, bookingID string) error {
	return nil
}

func (f *fakeLiveStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func newTestGateway(lifecycle *fakeLifecycle) (*Gateway, *fakePublisher, *fakeLiveStore) {
	publisher := &fakePublisher{}
	live := &fakeLiveStore{}
	g := NewGateway(lifecycle, publisher, live, 16, zap.NewNop())
	g.now = func() time.Time {
		return lifecycle.session.StartedAt.Add(10 * time.Minute)
	}
	return g, publisher, live
}

func TestIngestAcceptsForwardProgress(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, publisher, live := newTestGateway(lifecycle)

	snapshot, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 5, BatteryPercent: 40})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if snapshot.EstimatedCost != 5*3500 {
		t.Errorf("estimated cost = %v, want %v", snapshot.EstimatedCost, 5*3500)
	}
	if snapshot.Status != models.BookingStatusCharging {
		t.Errorf("status = %s, want charging", snapshot.Status)
	}
	// 20 points gained in 10 minutes, 60 points to go: 30 minutes.
	if snapshot.TimeRemainingSec != 1800 {
		t.Errorf("time remaining = %d, want 1800", snapshot.TimeRemainingSec)
	}
	if publisher.lastType() != ws.EventChargingUpdate {
		t.Errorf("published event = %q, want %q", publisher.lastType(), ws.EventChargingUpdate)
	}
	if live.saveCount() != 1 {
		t.Errorf("live saves = %d, want 1", live.saveCount())
	}
}

func TestFirstReadingSeedsRateBaseline(t *testing.T) {
	lifecycle := newFakeLifecycle()
	lifecycle.session.StartBattery = nil
	lifecycle.session.BatteryPercent = 0
	g, _, _ := newTestGateway(lifecycle)

	// No baseline before the first accepted reading, so no observed rate yet.
	first, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 2, BatteryPercent: 40})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	if first.TimeRemainingSec != 0 {
		t.Errorf("time remaining = %d before any rate is observable, want 0", first.TimeRemainingSec)
	}

	// The first reading became the baseline: 10 points in 10 minutes leaves
	// 50 points, 50 minutes.
	second, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 4, BatteryPercent: 50})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second.TimeRemainingSec != 3000 {
		t.Errorf("time remaining = %d, want 3000 from the seeded baseline", second.TimeRemainingSec)
	}
}

func TestIngestRejectsRegressingTelemetry(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, publisher, _ := newTestGateway(lifecycle)

	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 5, BatteryPercent: 40}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	tests := []struct {
		name   string
		update Update
	}{
		{name: "energy regresses", update: Update{EnergyKWh: 4, BatteryPercent: 41}},
		{name: "battery regresses", update: Update{EnergyKWh: 6, BatteryPercent: 39}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Ingest(context.Background(), "b-1", tt.update)
			if apperrors.KindOf(err) != apperrors.KindAnomaly {
				t.Fatalf("kind = %v, want anomaly", apperrors.KindOf(err))
			}
		})
	}

	if lifecycle.progressCount() != 1 {
		t.Errorf("progress writes = %d, rejected updates must not persist", lifecycle.progressCount())
	}
	if publisher.lastType() != ws.EventChargingUpdate {
		t.Errorf("rejected update published an event")
	}
}

func TestIngestEqualValuesAreNotAnomalies(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, _, _ := newTestGateway(lifecycle)

	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 5, BatteryPercent: 40}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 5, BatteryPercent: 40}); err != nil {
		t.Fatalf("repeated identical Ingest failed: %v", err)
	}
}

func TestIngestValidatesRange(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, _, _ := newTestGateway(lifecycle)

	tests := []Update{
		{EnergyKWh: -1, BatteryPercent: 50},
		{EnergyKWh: 5, BatteryPercent: -1},
		{EnergyKWh: 5, BatteryPercent: 101},
	}
	for _, update := range tests {
		if _, err := g.Ingest(context.Background(), "b-1", update); apperrors.KindOf(err) != apperrors.KindValidation {
			t.Errorf("Ingest(%+v) kind = %v, want validation", update, apperrors.KindOf(err))
		}
	}
}

func TestFullBatteryCompletesSession(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, publisher, _ := newTestGateway(lifecycle)

	snapshot, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 30, BatteryPercent: 100})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if snapshot.Status != models.BookingStatusCompleted {
		t.Errorf("status = %s, want completed", snapshot.Status)
	}
	completed, stopped := lifecycle.wasCompleted()
	if !completed {
		t.Fatal("lifecycle Complete not invoked")
	}
	if stopped {
		t.Error("full-battery completion tagged as stopped")
	}
	if publisher.lastType() != ws.EventChargingCompleted {
		t.Errorf("published event = %q, want %q", publisher.lastType(), ws.EventChargingCompleted)
	}
}

func TestStopFinalizesFromLastSnapshot(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, publisher, _ := newTestGateway(lifecycle)

	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 12, BatteryPercent: 55}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	snapshot, err := g.Stop(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if snapshot.EnergyKWh != 12 || snapshot.BatteryPercent != 55 {
		t.Errorf("snapshot = %+v, want last accepted values 12/55", snapshot)
	}
	completed, stopped := lifecycle.wasCompleted()
	if !completed || !stopped {
		t.Errorf("completed=%v stopped=%v, want true/true", completed, stopped)
	}
	if publisher.lastType() != ws.EventChargingStopped {
		t.Errorf("published event = %q, want %q", publisher.lastType(), ws.EventChargingStopped)
	}
}

func TestUpdatesAfterCompletionAreRejected(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, _, _ := newTestGateway(lifecycle)

	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 30, BatteryPercent: 100}); err != nil {
		t.Fatalf("completing Ingest failed: %v", err)
	}

	_, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 31, BatteryPercent: 100})
	var stateErr *apperrors.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("post-completion Ingest returned %T, want StateError", err)
	}
	if stateErr.Current != models.BookingStatusCompleted {
		t.Errorf("StateError.Current = %s, want completed", stateErr.Current)
	}
}

func TestUpdatesRacingStopAreAlwaysAnswered(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, _, _ := newTestGateway(lifecycle)

	if _, err := g.Ingest(context.Background(), "b-1", Update{EnergyKWh: 5, BatteryPercent: 40}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	// Every update racing the terminal stop must get a reply, either from the
	// worker, from the post-release drain, or from a fresh worker observing
	// the completed booking. A caller timing out on its own context means a
	// job was queued and never answered.
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := g.Ingest(ctx, "b-1", Update{
				EnergyKWh:      float64(6 + n),
				BatteryPercent: 41 + n,
			})
			errs <- err
		}(i)
	}
	if _, err := g.Stop(context.Background(), "b-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Fatal("update was queued but never answered")
		}
	}
}

func TestBookingsIngestIndependently(t *testing.T) {
	lifecycle := newFakeLifecycle()
	g, _, _ := newTestGateway(lifecycle)

	// b-2 shares the fake's single session record, which is fine here: the
	// point is that a second booking gets its own worker and queue.
	var wg sync.WaitGroup
	for _, id := range []string{"b-1", "b-2"} {
		wg.Add(1)
		go func(bookingID string) {
			defer wg.Done()
			for i := 1; i <= 5; i++ {
				g.Ingest(context.Background(), bookingID, Update{
					EnergyKWh:      float64(10 + i),
					BatteryPercent: 40 + i,
				})
			}
		}(id)
	}
	wg.Wait()

	g.mu.Lock()
	workers := len(g.workers)
	g.mu.Unlock()
	if workers != 2 {
		t.Errorf("active workers = %d, want one per booking", workers)
	}
}

func TestEstimateRemaining(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startBattery int
		battery      int
		elapsed      time.Duration
		want         int64
	}{
		{name: "steady rate", startBattery: 20, battery: 40, elapsed: 10 * time.Minute, want: 1800},
		{name: "no gain yet", startBattery: 20, battery: 20, elapsed: 5 * time.Minute, want: 0},
		{name: "full", startBattery: 20, battery: 100, elapsed: time.Hour, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimateRemaining(start, tt.startBattery, tt.battery, start.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("estimateRemaining = %d, want %d", got, tt.want)
			}
		})
	}
}
