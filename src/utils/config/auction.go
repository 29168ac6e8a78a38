package config

import (
	"time"

	"github.com/spf13/viper"
)

type Auction struct {
	// Max duration of a countdown style auction
	MaxCountdownDuration time.Duration

	// Max distance of an absolute deadline from the moment of the first bid
	MaxDeadlineDistance time.Duration

	// How often the janitor looks for auctions that lapsed without being closed
	JanitorPeriod time.Duration

	// An auction unclosed for this long past its end time is flagged as abandoned.
	// Escrowed funds are never seized, flagging is observability only.
	AbandonedRetention time.Duration
}

func setAuctionDefaults() {
	viper.SetDefault("Auction.MaxCountdownDuration", "720h")
	viper.SetDefault("Auction.MaxDeadlineDistance", "8760h")
	viper.SetDefault("Auction.JanitorPeriod", "1h")
	viper.SetDefault("Auction.AbandonedRetention", "168h")
}
