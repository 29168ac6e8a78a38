package events

import (
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Emitter persists marketplace events inside the operation's transaction and
// fans them out to sinks after the transaction commits.
type Emitter struct {
	log     *logrus.Entry
	monitor *monitor.Monitor

	subscribers []chan *model.MarketplaceEvent
}

func NewEmitter() (self *Emitter) {
	self = new(Emitter)
	self.log = logger.NewSublogger("events")
	return
}

func (self *Emitter) WithMonitor(monitor *monitor.Monitor) *Emitter {
	self.monitor = monitor
	return self
}

// Subscribe returns a channel that receives every published event.
// Sinks must keep up, slow sinks lose events rather than block settlement.
func (self *Emitter) Subscribe(size int) chan *model.MarketplaceEvent {
	ch := make(chan *model.MarketplaceEvent, size)
	self.subscribers = append(self.subscribers, ch)
	return ch
}

// Batch starts collecting the events of one operation
func (self *Emitter) Batch(operationId string) *Batch {
	return &Batch{emitter: self, operationId: operationId}
}

// Batch buffers the events of a single operation. Add persists the event in
// the operation's transaction, Publish pushes the buffered events to
// subscribers and must only be called after the transaction committed.
type Batch struct {
	emitter     *Emitter
	operationId string
	pending     []*model.MarketplaceEvent
}

func (self *Batch) Add(tx *gorm.DB, event *model.MarketplaceEvent) (err error) {
	event.OperationId = self.operationId

	err = tx.Create(event).Error
	if err != nil {
		return
	}

	self.pending = append(self.pending, event)
	return
}

func (self *Batch) Publish() {
	for _, event := range self.pending {
		for _, subscriber := range self.emitter.subscribers {
			select {
			case subscriber <- event:
			default:
				self.emitter.log.WithField("kind", event.Kind).Warn("Event sink is full, dropping event")
				if self.emitter.monitor != nil {
					self.emitter.monitor.Report.Errors.EventPublishErrors.Inc()
				}
			}
		}
		if self.emitter.monitor != nil {
			self.emitter.monitor.Report.EventsPublished.Inc()
		}
	}
	self.pending = nil
}
