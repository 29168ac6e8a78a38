package config

import (
	"github.com/spf13/viper"
)

type Marketplace struct {
	// Address of the platform owner, allowed to close any lapsed auction,
	// withdraw accrued fees and update marketplace settings
	OwnerAddress string

	// Initial platform fee, percent of the gross sale price.
	// Seeded into the marketplace state upon first run, owner-settable afterwards.
	FeeRatePercent uint

	// Initial cap on the sum of royalty percentages per asset
	RoyaltyCapPercent uint

	// Initial address of the off-chain authority that signs sale/mint terms
	SignerAddress string

	// Initial address of the caller allowed to register royalties on behalf of creators
	AuthorizedCaller string

	// How long the capability probe result for a collection is cached
	ProbeCacheExpiration string

	// Cron spec of the ledger audit job
	AuditSchedule string
}

func setMarketplaceDefaults() {
	viper.SetDefault("Marketplace.OwnerAddress", "")
	viper.SetDefault("Marketplace.FeeRatePercent", "10")
	viper.SetDefault("Marketplace.RoyaltyCapPercent", "50")
	viper.SetDefault("Marketplace.SignerAddress", "")
	viper.SetDefault("Marketplace.AuthorizedCaller", "")
	viper.SetDefault("Marketplace.ProbeCacheExpiration", "5m")
	viper.SetDefault("Marketplace.AuditSchedule", "0 0 3 * * *")
}
