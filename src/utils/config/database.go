package config

import (
	"time"

	"github.com/spf13/viper"
)

type Database struct {
	Port     uint16
	Host     string
	User     string
	Password string
	Name     string
	SslMode  string

	// User used only for running migrations. Empty means migrations are skipped.
	MigrationUser     string
	MigrationPassword string

	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func setDatabaseDefaults() {
	viper.SetDefault("Database.Port", "5432")
	viper.SetDefault("Database.Host", "127.0.0.1")
	viper.SetDefault("Database.User", "salon")
	viper.SetDefault("Database.Password", "salon")
	viper.SetDefault("Database.Name", "salon")
	viper.SetDefault("Database.SslMode", "disable")
	viper.SetDefault("Database.MigrationUser", "")
	viper.SetDefault("Database.MigrationPassword", "")
	viper.SetDefault("Database.PingTimeout", "15s")
	viper.SetDefault("Database.MaxOpenConns", "20")
	viper.SetDefault("Database.MaxIdleConns", "10")
	viper.SetDefault("Database.ConnMaxIdleTime", "30m")
	viper.SetDefault("Database.ConnMaxLifetime", "2h")
}
