package config

const (
	defaultStateDir           = "~/.local/share/streamwatch"
	defaultLogDir             = "~/.local/share/streamwatch/logs"
	defaultWatchlist          = "streamers_config.json"
	defaultBridgeURL          = "http://127.0.0.1:8095"
	defaultBridgeTimeout      = 10
	defaultSignServer         = "tiktok.eulerstream.com"
	defaultProbeTimeout       = 10
	defaultConnectTimeout     = 30
	defaultFinalizeTimeout    = 15
	defaultPauseSeconds       = 300
	defaultErrorRetryInterval = 30
	defaultDrainTimeout       = 30
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			Watchlist: defaultWatchlist,
		},
		Bridge: Bridge{
			URL:            defaultBridgeURL,
			RequestTimeout: defaultBridgeTimeout,
			SignServer:     defaultSignServer,
		},
		Monitor: Monitor{
			ProbeTimeout:        defaultProbeTimeout,
			ConnectTimeout:      defaultConnectTimeout,
			FinalizeTimeout:     defaultFinalizeTimeout,
			PauseDefaultSeconds: defaultPauseSeconds,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			DrainTimeout:        defaultDrainTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Recordings:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
