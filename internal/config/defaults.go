package config

const (
	DefaultListen       = "0.0.0.0:9000"
	DefaultServedModel  = "whisper-1"
	DefaultCheckpoint   = "small"
	defaultMaxWait      = 300
	defaultMaxUploadMB  = 100
	defaultFetchTimeout = 120
)

// Default returns the configuration used when no file is present. The model
// list is filled in by normalize so a file's [[models]] replaces it outright.
func Default() Config {
	return Config{
		Server: Server{
			Listen:               DefaultListen,
			Concurrency:          1,
			MaxWaitSeconds:       defaultMaxWait,
			MaxUploadMB:          defaultMaxUploadMB,
			FetchTimeoutSeconds:  defaultFetchTimeout,
			UI:                   true,
			SilenceThresholdDBFS: -65,
		},
		Engine: Engine{
			AutoDownload: true,
			Timestamps:   "chunk",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
