package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
	"chargebook/internal/service"
	"chargebook/internal/ws"
)

// Update is one periodic device report: cumulative energy and battery percent.
type Update struct {
	EnergyKWh      float64
	BatteryPercent int
}

// Snapshot is the state of a charging session after an accepted update.
type Snapshot struct {
	BookingID        string  `json:"booking_id"`
	BatteryPercent   int     `json:"battery"`
	EnergyKWh        float64 `json:"energy"`
	EstimatedCost    float64 `json:"estimated_cost"`
	TimeRemainingSec int64   `json:"time_remaining"`
	Status           string  `json:"status"`
}

// Lifecycle is the slice of the booking service the gateway drives.
type Lifecycle interface {
	ChargingState(ctx context.Context, bookingID string) (*service.ChargingState, error)
	RecordProgress(ctx context.Context, bookingID string, battery int, energyKWh, estimatedCost float64) error
	Complete(ctx context.Context, bookingID string, finalEnergy float64, finalBattery int, stopped bool) (*models.Booking, error)
}

// Publisher fans events out to a booking's realtime room.
type Publisher interface {
	Publish(bookingID string, event ws.Event)
}

// LiveStore caches the latest snapshot per active booking.
type LiveStore interface {
	Save(ctx context.Context, bookingID string, payload any) error
	Delete(ctx context.Context, bookingID string) error
}

type job struct {
	ctx    context.Context
	update Update
	stop   bool
	reply  chan jobResult
}

type jobResult struct {
	snapshot *Snapshot
	err      error
}

type worker struct {
	bookingID string
	jobs      chan job
}

// Gateway ingests device telemetry. Updates for one booking are processed by a
// single worker reading a bounded queue, so cost computation never observes
// energy or battery regressing due to interleaving; different bookings proceed
// fully in parallel.
type Gateway struct {
	lifecycle Lifecycle
	publisher Publisher
	live      LiveStore
	queueSize int
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	workers map[string]*worker
}

// NewGateway builds the gateway. queueSize bounds each booking's pending
// updates; 16 when unset.
func NewGateway(lifecycle Lifecycle, publisher Publisher, live LiveStore, queueSize int, logger *zap.Logger) *Gateway {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Gateway{
		lifecycle: lifecycle,
		publisher: publisher,
		live:      live,
		queueSize: queueSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		workers:   make(map[string]*worker),
	}
}

// Ingest queues one telemetry update and waits for its result. A full queue
// rejects the update rather than blocking the device.
func (g *Gateway) Ingest(ctx context.Context, bookingID string, update Update) (*Snapshot, error) {
	if update.EnergyKWh < 0 || update.BatteryPercent < 0 || update.BatteryPercent > 100 {
		return nil, apperrors.Validation("telemetry values out of range")
	}
	return g.submit(ctx, bookingID, job{ctx: ctx, update: update, reply: make(chan jobResult, 1)})
}

// Stop is the out-of-band termination signal (device disconnect or operator
// override). It finalizes the session from its last accepted snapshot and
// tags the event stopped-not-completed.
func (g *Gateway) Stop(ctx context.Context, bookingID string) (*Snapshot, error) {
	return g.submit(ctx, bookingID, job{ctx: ctx, stop: true, reply: make(chan jobResult, 1)})
}

func (g *Gateway) submit(ctx context.Context, bookingID string, j job) (*Snapshot, error) {
	if !g.enqueue(bookingID, j) {
		return nil, apperrors.Conflict("telemetry queue full for booking %s", bookingID)
	}

	select {
	case res := <-j.reply:
		return res.snapshot, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue resolves the worker and hands the job over while holding the
// registry lock. Holding it through the send is what makes release/drain
// sound: a job can only enter a queue whose worker is still registered, so
// every queued job is answered either by run or by the post-release drain.
func (g *Gateway) enqueue(bookingID string, j job) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.workers[bookingID]
	if !ok {
		w = &worker{bookingID: bookingID, jobs: make(chan job, g.queueSize)}
		g.workers[bookingID] = w
		go g.run(w)
	}
	select {
	case w.jobs <- j:
		return true
	default:
		return false
	}
}

func (g *Gateway) release(bookingID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.workers, bookingID)
}

func (g *Gateway) run(w *worker) {
	for j := range w.jobs {
		snapshot, done, err := g.process(j, w.bookingID)
		j.reply <- jobResult{snapshot: snapshot, err: err}
		if done {
			g.release(w.bookingID)
			g.drain(w)
			return
		}
	}
}

// drain answers updates that were queued behind the terminal one.
func (g *Gateway) drain(w *worker) {
	for {
		select {
		case j := <-w.jobs:
			j.reply <- jobResult{err: &apperrors.StateError{
				Attempted: "telemetry",
				Current:   models.BookingStatusCompleted,
			}}
		default:
			return
		}
	}
}

func (g *Gateway) process(j job, bookingID string) (*Snapshot, bool, error) {
	state, err := g.lifecycle.ChargingState(j.ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	sess := state.Session

	if j.stop {
		return g.finalize(j.ctx, state, sess.EnergyKWh, sess.BatteryPercent, true)
	}

	upd := j.update
	if upd.EnergyKWh < sess.EnergyKWh || upd.BatteryPercent < sess.BatteryPercent {
		g.logger.Warn("telemetry anomaly rejected",
			zap.String("booking_id", bookingID),
			zap.Float64("energy_kwh", upd.EnergyKWh),
			zap.Float64("last_energy_kwh", sess.EnergyKWh),
			zap.Int("battery", upd.BatteryPercent),
			zap.Int("last_battery", sess.BatteryPercent),
		)
		return nil, false, apperrors.Anomaly("telemetry regressed for booking %s", bookingID)
	}

	estimated := service.ComputeCost(upd.EnergyKWh, state.PricePerKWh, state.Promotion)
	if err := g.lifecycle.RecordProgress(j.ctx, bookingID, upd.BatteryPercent, upd.EnergyKWh, estimated); err != nil {
		return nil, false, err
	}

	if upd.BatteryPercent >= 100 {
		return g.finalize(j.ctx, state, upd.EnergyKWh, upd.BatteryPercent, false)
	}

	// The first accepted reading becomes the rate baseline; until then there
	// is no observed charge rate and no estimate.
	startBattery := upd.BatteryPercent
	if sess.StartBattery != nil {
		startBattery = *sess.StartBattery
	}
	snapshot := &Snapshot{
		BookingID:        bookingID,
		BatteryPercent:   upd.BatteryPercent,
		EnergyKWh:        upd.EnergyKWh,
		EstimatedCost:    estimated,
		TimeRemainingSec: estimateRemaining(sess.StartedAt, startBattery, upd.BatteryPercent, g.now()),
		Status:           models.BookingStatusCharging,
	}
	g.saveLive(j.ctx, snapshot)
	g.publisher.Publish(bookingID, ws.Event{Type: ws.EventChargingUpdate, Data: snapshot})
	return snapshot, false, nil
}

func (g *Gateway) finalize(ctx context.Context, state *service.ChargingState, finalEnergy float64, finalBattery int, stopped bool) (*Snapshot, bool, error) {
	bookingID := state.Booking.ID
	booking, err := g.lifecycle.Complete(ctx, bookingID, finalEnergy, finalBattery, stopped)
	if err != nil {
		return nil, false, err
	}

	snapshot := &Snapshot{
		BookingID:      bookingID,
		BatteryPercent: finalBattery,
		EnergyKWh:      finalEnergy,
		Status:         booking.Status,
	}
	if booking.TotalCost != nil {
		snapshot.EstimatedCost = *booking.TotalCost
	}

	eventType := ws.EventChargingCompleted
	if stopped {
		eventType = ws.EventChargingStopped
	}
	g.saveLive(ctx, snapshot)
	g.publisher.Publish(bookingID, ws.Event{Type: eventType, Data: snapshot})
	return snapshot, true, nil
}

func (g *Gateway) saveLive(ctx context.Context, snapshot *Snapshot) {
	if g.live == nil {
		return
	}
	if err := g.live.Save(ctx, snapshot.BookingID, snapshot); err != nil {
		g.logger.Warn("failed to cache live snapshot",
			zap.String("booking_id", snapshot.BookingID),
			zap.Error(err),
		)
	}
}

// estimateRemaining projects seconds to full charge from the average rate
// observed since the session started. Zero until the rate is measurable.
func estimateRemaining(startedAt time.Time, startBattery, battery int, now time.Time) int64 {
	gained := battery - startBattery
	elapsed := now.Sub(startedAt).Seconds()
	if gained <= 0 || elapsed <= 0 {
		return 0
	}
	rate := float64(gained) / elapsed
	return int64(float64(100-battery) / rate)
}
