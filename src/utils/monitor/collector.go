package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	UpForSeconds *prometheus.Desc

	AuctionsOpened    *prometheus.Desc
	BidsRaised        *prometheus.Desc
	AuctionsClosed    *prometheus.Desc
	AuctionsAbandoned *prometheus.Desc

	SalesSettled     *prometheus.Desc
	AssetsMinted     *prometheus.Desc
	VolumeSettled    *prometheus.Desc
	FeesAccrued      *prometheus.Desc
	TransferFailures *prometheus.Desc

	PendingWithdrawals *prometheus.Desc
	FeeWithdrawals     *prometheus.Desc

	EventsPublished *prometheus.Desc

	AuthorizationFailures *prometheus.Desc
	ValidationFailures    *prometheus.Desc
	ConfigurationFailures *prometheus.Desc
	DbErrors              *prometheus.Desc
	EventPublishErrors    *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "salon",
	}

	return &Collector{
		UpForSeconds: prometheus.NewDesc("up_for_seconds", "", nil, labels),

		AuctionsOpened:    prometheus.NewDesc("auctions_opened", "", nil, labels),
		BidsRaised:        prometheus.NewDesc("bids_raised", "", nil, labels),
		AuctionsClosed:    prometheus.NewDesc("auctions_closed", "", nil, labels),
		AuctionsAbandoned: prometheus.NewDesc("auctions_abandoned", "", nil, labels),

		SalesSettled:     prometheus.NewDesc("sales_settled", "", nil, labels),
		AssetsMinted:     prometheus.NewDesc("assets_minted", "", nil, labels),
		VolumeSettled:    prometheus.NewDesc("volume_settled", "", nil, labels),
		FeesAccrued:      prometheus.NewDesc("fees_accrued", "", nil, labels),
		TransferFailures: prometheus.NewDesc("transfer_failures", "", nil, labels),

		PendingWithdrawals: prometheus.NewDesc("pending_withdrawals", "", nil, labels),
		FeeWithdrawals:     prometheus.NewDesc("fee_withdrawals", "", nil, labels),

		EventsPublished: prometheus.NewDesc("events_published", "", nil, labels),

		// Errors
		AuthorizationFailures: prometheus.NewDesc("error_authorization", "", nil, labels),
		ValidationFailures:    prometheus.NewDesc("error_validation", "", nil, labels),
		ConfigurationFailures: prometheus.NewDesc("error_configuration", "", nil, labels),
		DbErrors:              prometheus.NewDesc("error_db", "", nil, labels),
		EventPublishErrors:    prometheus.NewDesc("error_event_publish", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.UpForSeconds
	ch <- self.AuctionsOpened
	ch <- self.BidsRaised
	ch <- self.AuctionsClosed
	ch <- self.AuctionsAbandoned
	ch <- self.SalesSettled
	ch <- self.AssetsMinted
	ch <- self.VolumeSettled
	ch <- self.FeesAccrued
	ch <- self.TransferFailures
	ch <- self.PendingWithdrawals
	ch <- self.FeeWithdrawals
	ch <- self.EventsPublished
	ch <- self.AuthorizationFailures
	ch <- self.ValidationFailures
	ch <- self.ConfigurationFailures
	ch <- self.DbErrors
	ch <- self.EventPublishErrors
}

func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	self.monitor.Report.Fill()

	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(self.monitor.Report.UpForSeconds.Load()))

	ch <- prometheus.MustNewConstMetric(self.AuctionsOpened, prometheus.CounterValue, float64(self.monitor.Report.AuctionsOpened.Load()))
	ch <- prometheus.MustNewConstMetric(self.BidsRaised, prometheus.CounterValue, float64(self.monitor.Report.BidsRaised.Load()))
	ch <- prometheus.MustNewConstMetric(self.AuctionsClosed, prometheus.CounterValue, float64(self.monitor.Report.AuctionsClosed.Load()))
	ch <- prometheus.MustNewConstMetric(self.AuctionsAbandoned, prometheus.GaugeValue, float64(self.monitor.Report.AuctionsAbandoned.Load()))

	ch <- prometheus.MustNewConstMetric(self.SalesSettled, prometheus.CounterValue, float64(self.monitor.Report.SalesSettled.Load()))
	ch <- prometheus.MustNewConstMetric(self.AssetsMinted, prometheus.CounterValue, float64(self.monitor.Report.AssetsMinted.Load()))
	ch <- prometheus.MustNewConstMetric(self.VolumeSettled, prometheus.CounterValue, float64(self.monitor.Report.VolumeSettled.Load()))
	ch <- prometheus.MustNewConstMetric(self.FeesAccrued, prometheus.CounterValue, float64(self.monitor.Report.FeesAccrued.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransferFailures, prometheus.CounterValue, float64(self.monitor.Report.TransferFailures.Load()))

	ch <- prometheus.MustNewConstMetric(self.PendingWithdrawals, prometheus.CounterValue, float64(self.monitor.Report.PendingWithdrawals.Load()))
	ch <- prometheus.MustNewConstMetric(self.FeeWithdrawals, prometheus.CounterValue, float64(self.monitor.Report.FeeWithdrawals.Load()))

	ch <- prometheus.MustNewConstMetric(self.EventsPublished, prometheus.CounterValue, float64(self.monitor.Report.EventsPublished.Load()))

	ch <- prometheus.MustNewConstMetric(self.AuthorizationFailures, prometheus.CounterValue, float64(self.monitor.Report.Errors.AuthorizationFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ValidationFailures, prometheus.CounterValue, float64(self.monitor.Report.Errors.ValidationFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ConfigurationFailures, prometheus.CounterValue, float64(self.monitor.Report.Errors.ConfigurationFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.DbErrors, prometheus.CounterValue, float64(self.monitor.Report.Errors.DbErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.EventPublishErrors, prometheus.CounterValue, float64(self.monitor.Report.Errors.EventPublishErrors.Load()))
}
