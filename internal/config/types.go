package config

// Config holds all w3sale configuration.
type Config struct {
	DefaultWallet string              `json:"default_wallet" env:"W3SALE_DEFAULT_WALLET"`
	StateFile     string              `json:"state_file"     env:"W3SALE_STATE_FILE"`
	JournalFile   string              `json:"journal_file"   env:"W3SALE_JOURNAL_FILE"`
	ListenAddr    string              `json:"listen_addr"    env:"W3SALE_LISTEN_ADDR"`
	WatchInterval int                 `json:"watch_interval" env:"W3SALE_WATCH_INTERVAL"` // seconds
	LogLevel      string              `json:"log_level"      env:"W3SALE_LOG_LEVEL"`
	RPCStrategy   string              `json:"rpc_strategy"   env:"W3SALE_RPC_STRATEGY"` // first, fastest or failover
	CustomRPCs    map[string][]string `json:"custom_rpcs"`

	// internal: config dir path used for Save()
	configDir string
}
