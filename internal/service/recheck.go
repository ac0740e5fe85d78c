package service

import (
	"context"
	"log"
	"time"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

// RecheckWorker fires a single delayed ResolveClaim for users whose claim
// was deferred on the subscription gate. It is a convenience trigger only:
// the explicit /check path is authoritative and a lost recheck is harmless,
// since the staged claim stays put until some ResolveClaim consumes it.
type RecheckWorker struct {
	referralSvc *ReferralService
	delay       time.Duration
	requests    chan int64
	notifier    Notifier
}

func NewRecheckWorker(referralSvc *ReferralService, delay time.Duration) *RecheckWorker {
	return &RecheckWorker{
		referralSvc: referralSvc,
		delay:       delay,
		requests:    make(chan int64, 256),
	}
}

// SetNotifier sets the notifier for sending notifications
func (w *RecheckWorker) SetNotifier(notifier Notifier) {
	w.notifier = notifier
}

// Schedule queues a one-shot recheck. Best effort: when the queue is full
// the request is dropped.
func (w *RecheckWorker) Schedule(userID int64) {
	select {
	case w.requests <- userID:
	default:
		log.Printf("[Recheck Worker] Queue full, dropping recheck for user %d", userID)
	}
}

func (w *RecheckWorker) Start(ctx context.Context) {
	log.Printf("[Recheck Worker] Started, delay %v", w.delay)

	for {
		select {
		case <-ctx.Done():
			log.Println("[Recheck Worker] Stopped")
			return
		case userID := <-w.requests:
			go w.runOne(ctx, userID)
		}
	}
}

func (w *RecheckWorker) runOne(ctx context.Context, userID int64) {
	timer := time.NewTimer(w.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	outcome, applied, err := w.referralSvc.ResolveClaim(ctx, userID)
	if err != nil {
		log.Printf("[Recheck Worker] Resolve failed for user %d: %v", userID, err)
		return
	}

	if outcome == model.ResolveCredited && applied && w.notifier != nil {
		w.notifier.NotifyAutoCheckCredited(userID)
	}
}
