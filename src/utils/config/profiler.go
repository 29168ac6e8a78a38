package config

import (
	"github.com/spf13/viper"
)

type Profiler struct {
	// Attaches pprof endpoints to the gateway when true
	Enabled bool
}

func setProfilerDefaults() {
	viper.SetDefault("Profiler.Enabled", "false")
}
