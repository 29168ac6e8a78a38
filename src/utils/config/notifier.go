package config

import (
	"time"

	"github.com/spf13/viper"
)

type Notifier struct {
	// Webhook notifications are disabled when empty
	WebhookUrl string

	// Secret sent in the X-Salon-Token header
	WebhookToken string

	// Max time a single notification is retried. 0 means no limit.
	MaxElapsedTime time.Duration

	// Max time between retries
	MaxInterval time.Duration

	// Workers that send notifications
	MaxWorkers int

	// Max notifications waiting in the queue
	MaxQueueSize int
}

func setNotifierDefaults() {
	viper.SetDefault("Notifier.WebhookUrl", "")
	viper.SetDefault("Notifier.WebhookToken", "")
	viper.SetDefault("Notifier.MaxElapsedTime", "2m")
	viper.SetDefault("Notifier.MaxInterval", "15s")
	viper.SetDefault("Notifier.MaxWorkers", "2")
	viper.SetDefault("Notifier.MaxQueueSize", "1000")
}
