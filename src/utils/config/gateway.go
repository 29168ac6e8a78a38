package config

import (
	"time"

	"github.com/spf13/viper"
)

type Gateway struct {
	// REST API address
	ListenAddress string

	// Max time for handling a single request
	RequestTimeout time.Duration

	// Requests per second accepted before the limiter starts to wait
	RequestsPerSecond int
}

func setGatewayDefaults() {
	viper.SetDefault("Gateway.ListenAddress", ":8080")
	viper.SetDefault("Gateway.RequestTimeout", "30s")
	viper.SetDefault("Gateway.RequestsPerSecond", "100")
}
