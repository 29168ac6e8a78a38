package config

import (
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	// Publishing is disabled when false
	Enabled bool

	Port     uint16
	Host     string
	User     string
	Password string
	DB       int

	// Name of the pub/sub channel marketplace events are published to
	ChannelName string

	MinIdleConns    int
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	// Workers that publish events
	MaxWorkers int

	// Max events waiting to be published
	MaxQueueSize int
}

func setRedisDefaults() {
	viper.SetDefault("Redis.Enabled", "false")
	viper.SetDefault("Redis.Port", "6379")
	viper.SetDefault("Redis.Host", "127.0.0.1")
	viper.SetDefault("Redis.User", "")
	viper.SetDefault("Redis.Password", "")
	viper.SetDefault("Redis.DB", "0")
	viper.SetDefault("Redis.ChannelName", "salon/events")
	viper.SetDefault("Redis.MinIdleConns", "1")
	viper.SetDefault("Redis.MaxIdleConns", "4")
	viper.SetDefault("Redis.MaxOpenConns", "8")
	viper.SetDefault("Redis.ConnMaxIdleTime", "5m")
	viper.SetDefault("Redis.ConnMaxLifetime", "1h")
	viper.SetDefault("Redis.MaxWorkers", "2")
	viper.SetDefault("Redis.MaxQueueSize", "100")
}
