package events

import (
	"errors"
	"net/http"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"
	"github.com/superworldapp/nftsalon-engine/src/utils/task"

	"github.com/go-resty/resty/v2"
)

var ErrWebhookRejected = errors.New("webhook endpoint rejected the notification")

// Posts marketplace events to a configured webhook.
// Delivery is retried with backoff, failed deliveries are dropped after that.
type WebhookNotifier struct {
	*task.Task

	notifierConfig config.Notifier

	monitor *monitor.Monitor

	client *resty.Client
	input  chan *model.MarketplaceEvent
}

func NewWebhookNotifier(config *config.Config, name string) (self *WebhookNotifier) {
	self = new(WebhookNotifier)

	self.notifierConfig = config.Notifier

	self.client = resty.New().
		SetTimeout(config.Gateway.RequestTimeout).
		SetHeader("Content-Type", "application/json")

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithWorkerPool(config.Notifier.MaxWorkers)

	return
}

func (self *WebhookNotifier) WithInputChannel(v chan *model.MarketplaceEvent) *WebhookNotifier {
	self.input = v
	return self
}

func (self *WebhookNotifier) WithMonitor(monitor *monitor.Monitor) *WebhookNotifier {
	self.monitor = monitor
	return self
}

func (self *WebhookNotifier) run() (err error) {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case event, ok := <-self.input:
			if !ok {
				return nil
			}
			self.SubmitToWorker(func() {
				self.send(event)
			})
		}
	}
}

func (self *WebhookNotifier) send(event *model.MarketplaceEvent) {
	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.notifierConfig.MaxElapsedTime).
		WithMaxInterval(self.notifierConfig.MaxInterval).
		WithOnError(func(err error) {
			self.Log.WithError(err).WithField("kind", event.Kind).Debug("Retrying webhook notification")
		}).
		Run(func() error {
			resp, err := self.client.R().
				SetContext(self.Ctx).
				SetHeader("X-Salon-Token", self.notifierConfig.WebhookToken).
				SetBody(event).
				Post(self.notifierConfig.WebhookUrl)
			if err != nil {
				return err
			}
			if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
				return ErrWebhookRejected
			}
			return nil
		})
	if err != nil {
		self.Log.WithError(err).WithField("kind", event.Kind).Error("Failed to deliver webhook notification")
		if self.monitor != nil {
			self.monitor.Report.Errors.EventPublishErrors.Inc()
		}
	}
}
