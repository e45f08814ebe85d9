package workers

import (
	"context"

	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/network"
)

// BroadcastEventChanSize is the buffer of pending change notifications
const BroadcastEventChanSize = 1024

// BroadcastWorker fans change notifications out to the subscribers of the
// database they belong to. The session that caused a change is skipped.
type BroadcastWorker struct {
	subscriberManager  *network.SubscriberManager
	broadcastEventChan <-chan BroadcastEvent
	logger             *log.Logger
}

type BroadcastEvent struct {
	Database string
	Event    *messages.Event
}

type NewBroadcastWorkerOptions struct {
	SubscriberManager  *network.SubscriberManager
	BroadcastEventChan <-chan BroadcastEvent
	Logger             *log.Logger
}

func NewBroadcastWorker(opts NewBroadcastWorkerOptions) *BroadcastWorker {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &BroadcastWorker{
		subscriberManager:  opts.SubscriberManager,
		broadcastEventChan: opts.BroadcastEventChan,
		logger:             logger,
	}
}

func (w *BroadcastWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-w.broadcastEventChan:
			if !ok {
				return
			}
			w.broadcast(b)
		}
	}
}

func (w *BroadcastWorker) broadcast(b BroadcastEvent) {
	if b.Event == nil {
		w.logger.Error("Dropping empty broadcast for %s", b.Database)
		return
	}
	payload, err := messages.SerializeEvent(b.Event)
	if err != nil {
		w.logger.Error("Failed to serialize %s event for %s/%s: %v", b.Event.Event, b.Database, b.Event.Key, err)
		return
	}

	for _, sub := range w.subscriberManager.GetSubscribers(b.Database) {
		if sub.SessionID == b.Event.SessionID {
			continue
		}
		if err := sub.WriteBinary(payload); err != nil {
			w.logger.Debug("Failed to notify session %s, disconnecting: %v", sub.SessionID, err)
			w.subscriberManager.Disconnect(sub.SessionID)
			if conn := sub.Conn(); conn != nil {
				conn.Close()
			}
		}
	}
	w.logger.Trace("Broadcast %s %s/%s", b.Event.Event, b.Database, b.Event.Key)
}
