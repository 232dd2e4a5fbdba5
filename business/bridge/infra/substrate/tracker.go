package substrate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// unwatchTimeout bounds the author_unwatchExtrinsic call made on Stop.
const unwatchTimeout = 5 * time.Second

// tracker turns author_submitAndWatchExtrinsic notifications into
// app.TrackerEvents.
type tracker struct {
	hash   string
	sub    Subscription
	events chan app.TrackerEvent
	log    logger.LoggerInterface

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ app.Tracker = (*tracker)(nil)

func newTracker(hash string, sub Subscription, log logger.LoggerInterface) *tracker {
	t := &tracker{
		hash:   hash,
		sub:    sub,
		events: make(chan app.TrackerEvent, 8),
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.emit(app.TrackerEvent{Kind: app.TrackerSubmitted, TxHash: hash})
	go t.run()
	return t
}

func (t *tracker) TxHash() string                  { return t.hash }
func (t *tracker) Events() <-chan app.TrackerEvent { return t.events }

// Stop ends tracking and unsubscribes. It is safe to call more than once.
func (t *tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
		<-t.done
		ctx, cancel := context.WithTimeout(context.Background(), unwatchTimeout)
		defer cancel()
		if err := t.sub.Unsubscribe(ctx); err != nil {
			t.log.Debug(ctx, "unwatch extrinsic failed", "tx_hash", t.hash, "error", err)
		}
	})
}

func (t *tracker) emit(ev app.TrackerEvent) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.stop:
		return false
	}
}

func (t *tracker) run() {
	defer close(t.done)
	defer close(t.events)

	for {
		select {
		case <-t.stop:
			return
		case <-t.sub.Done():
			t.emit(app.TrackerEvent{
				Kind:   app.TrackerError,
				TxHash: t.hash,
				Err:    apperror.New(apperror.CodeSubstrateConnection, apperror.WithContext("extrinsic watch closed")),
			})
			return
		case raw, ok := <-t.sub.Notifications():
			if !ok {
				return
			}
			ev, terminal := parseStatus(t.hash, raw)
			if ev.Kind == "" {
				continue
			}
			if !t.emit(ev) || terminal {
				return
			}
		}
	}
}

// parseStatus decodes a TransactionStatus notification. Strings carry the
// bare variants ("ready", "future", "dropped", "invalid"); objects carry one
// key with a payload ({"inBlock": "0x.."}).
func parseStatus(hash string, raw json.RawMessage) (app.TrackerEvent, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "dropped", "invalid":
			return app.TrackerEvent{
				Kind:   app.TrackerError,
				TxHash: hash,
				Err:    apperror.New(apperror.CodeExtrinsicDropped, apperror.WithContext(name)),
			}, true
		default:
			return app.TrackerEvent{}, false
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return app.TrackerEvent{}, false
	}
	blockHash := func(key string) string {
		var h string
		_ = json.Unmarshal(obj[key], &h)
		return h
	}
	switch {
	case obj["finalized"] != nil:
		return app.TrackerEvent{Kind: app.TrackerFinalized, TxHash: hash, BlockHash: blockHash("finalized")}, true
	case obj["inBlock"] != nil:
		return app.TrackerEvent{Kind: app.TrackerInBlock, TxHash: hash, BlockHash: blockHash("inBlock")}, false
	case obj["usurped"] != nil, obj["finalityTimeout"] != nil:
		return app.TrackerEvent{
			Kind:   app.TrackerError,
			TxHash: hash,
			Err:    apperror.New(apperror.CodeExtrinsicDropped, apperror.WithContext("usurped or finality timeout")),
		}, true
	}
	return app.TrackerEvent{}, false
}
