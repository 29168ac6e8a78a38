package marketplace

import (
	"github.com/superworldapp/nftsalon-engine/src/assets"
	"github.com/superworldapp/nftsalon-engine/src/auction"
	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"
	"github.com/superworldapp/nftsalon-engine/src/utils/task"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"
)

type Controller struct {
	*task.Task
}

// Main class that orchestrates the marketplace: database, engines, facade,
// REST server and the event publishers.
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	mon := monitor.NewMonitor().
		WithMaxHistorySize(30)

	metrics := prometheus.NewRegistry()
	err = metrics.Register(monitor.NewCollector().WithMonitor(mon))
	if err != nil {
		return
	}

	db, err := model.NewConnection(self.Ctx, config, "salon")
	if err != nil {
		return
	}

	rail := settle.NewLedgerRail()

	registry := royalty.NewRegistry()

	emitter := events.NewEmitter().
		WithMonitor(mon)

	settler := settle.NewEngine().
		WithRegistry(registry).
		WithRail(rail).
		WithMonitor(mon)

	auctions := auction.NewEngine(config).
		WithRefunder(settler).
		WithMonitor(mon)

	catalog := assets.NewCatalog(config)

	facade := NewFacade(config).
		WithDB(db).
		WithRegistry(registry).
		WithSettler(settler).
		WithAuctions(auctions).
		WithCatalog(catalog).
		WithRail(rail).
		WithEmitter(emitter).
		WithMonitor(mon)

	err = facade.EnsureState(self.Ctx)
	if err != nil {
		return
	}

	server := NewServer(config).
		WithFacade(facade).
		WithMonitor(mon).
		WithMetrics(metrics)

	janitor := task.NewTask(config, "janitor").
		WithPeriodicSubtaskFunc(config.Auction.JanitorPeriod, func() error {
			return auctions.FlagAbandoned(self.Ctx, db)
		})

	auditor := cron.New()
	err = auditor.AddFunc(config.Marketplace.AuditSchedule, func() {
		_, auditErr := settler.Audit(self.Ctx, db)
		if auditErr != nil {
			self.Log.WithError(auditErr).Error("Ledger audit failed to run")
		}
	})
	if err != nil {
		return
	}

	self.Task = self.Task.
		WithSubtask(mon.Task).
		WithSubtask(server.Task).
		WithSubtask(janitor).
		WithOnBeforeStart(func() error {
			auditor.Start()
			return nil
		}).
		WithOnStop(auditor.Stop)

	if config.Redis.Enabled {
		redis := events.NewRedisPublisher(config, "redis-publisher").
			WithInputChannel(emitter.Subscribe(config.Redis.MaxQueueSize)).
			WithMonitor(mon)
		self.Task = self.Task.WithSubtask(redis.Task)
	}

	if config.Notifier.WebhookUrl != "" {
		webhook := events.NewWebhookNotifier(config, "webhook-notifier").
			WithInputChannel(emitter.Subscribe(config.Notifier.MaxQueueSize)).
			WithMonitor(mon)
		self.Task = self.Task.WithSubtask(webhook.Task)
	}

	return
}
