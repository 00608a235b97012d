// Package notify turns enrollment changes into desktop notifications and
// text messages.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/badgerwatch/internal/enrollment"
	"github.com/example/badgerwatch/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sendTimeout = 30 * time.Second

var ErrNoRelay = errors.New("no message relay configured")

// Destinations yields the current phone numbers / addresses.
type Destinations interface {
	Load(ctx context.Context) (store.Config, error)
}

// Sinks are the delivery channels. Any of them may be nil.
type Sinks struct {
	Desktop   Desktop
	Relay     Relay
	Broadcast Broadcaster
}

// Dispatcher fans messages out without blocking the caller. Delivery errors
// are logged and never returned, except from TestMessage.
type Dispatcher struct {
	sinks  Sinks
	dests  Destinations
	logger *zap.Logger
	wg     sync.WaitGroup
}

func New(sinks Sinks, dests Destinations, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sinks: sinks, dests: dests, logger: logger}
}

// Dispatch notifies about one change of one course.
func (d *Dispatcher) Dispatch(c enrollment.WatchedCourse, ch enrollment.Change) {
	m := ForChange(c, ch)
	log := d.logger.With(
		zap.String("dispatch_id", uuid.NewString()),
		zap.String("course_id", c.CourseID),
		zap.String("kind", string(ch.Kind)),
	)
	log.Info("dispatching change", zap.String("section", ch.SectionKey), zap.String("text", m.Text))

	d.desktop(log, m.Title, m.Body)
	d.relayAll(log, m.Text)
	d.broadcast(log, m.Text)
}

// Announce raises the "Watching" notification for a newly watched course.
func (d *Dispatcher) Announce(c enrollment.WatchedCourse) {
	log := d.logger.With(zap.String("dispatch_id", uuid.NewString()), zap.String("course_id", c.CourseID))
	d.desktop(log, "Watching", c.Title)
}

// TestMessage sends the test text to one destination and waits for the
// relay to finish.
func (d *Dispatcher) TestMessage(ctx context.Context, destination string) error {
	if d.sinks.Relay == nil {
		return ErrNoRelay
	}
	if err := store.ValidatePhoneNumber(destination); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := d.sinks.Relay.Send(ctx, destination, testMessageText); err != nil {
		d.logger.Warn("test message failed", zap.String("destination", destination), zap.Error(err))
		return err
	}
	d.logger.Info("test message sent", zap.String("destination", destination))
	return nil
}

// Wait blocks until every in-flight delivery has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) desktop(log *zap.Logger, title, body string) {
	if d.sinks.Desktop == nil {
		return
	}
	d.goSend(func() {
		if err := d.sinks.Desktop.Notify(title, body); err != nil {
			log.Warn("desktop notification failed", zap.Error(err))
		}
	})
}

// relayAll loads the destinations off the caller's goroutine, then sends to
// each one from its own goroutine.
func (d *Dispatcher) relayAll(log *zap.Logger, text string) {
	if d.sinks.Relay == nil || d.dests == nil {
		return
	}
	d.goSend(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		cfg, err := d.dests.Load(ctx)
		if err != nil {
			log.Warn("load destinations", zap.Error(err))
			return
		}
		if len(cfg.PhoneNumbers) == 0 {
			log.Debug("no phone numbers configured, skipping relay")
			return
		}
		for _, dest := range cfg.PhoneNumbers {
			d.goSend(func() {
				ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
				defer cancel()
				if err := d.sinks.Relay.Send(ctx, dest, text); err != nil {
					log.Warn("relay failed", zap.String("destination", dest), zap.Error(err))
					return
				}
				log.Debug("relay sent", zap.String("destination", dest))
			})
		}
	})
}

func (d *Dispatcher) broadcast(log *zap.Logger, text string) {
	if d.sinks.Broadcast == nil {
		return
	}
	d.goSend(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := d.sinks.Broadcast.Broadcast(ctx, text); err != nil {
			log.Warn("broadcast failed", zap.Error(err))
		}
	})
}

func (d *Dispatcher) goSend(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notification panicked", zap.Any("panic", r))
			}
		}()
		fn()
	}()
}
