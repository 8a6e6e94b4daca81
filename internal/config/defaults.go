package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultFlushInterval           = 20 * time.Millisecond
	DefaultQueueWarnThreshold      = 50
	DefaultKeepAliveThresholdChars = 1 << 20
	DefaultInitialQueueCapacity    = 16
	DefaultBackend                 = BackendMemory
	DefaultStateDir                = "./state"
	DefaultCheckpointInterval      = 30 * time.Second
	DefaultDBPort                  = 5432
	DefaultDBSSLMode               = "prefer"
	DefaultDBApplicationName       = "mediaroute"
	DefaultMaxConns                = 4
	DefaultMinConns                = 1
	DefaultReconnectBaseDelay      = 1 * time.Second
	DefaultReconnectMaxDelay       = 60 * time.Second
	DefaultPingInterval            = 15 * time.Second
	DefaultPingTimeout             = 30 * time.Second
	DefaultWriteTimeout            = 10 * time.Second
	DefaultAPIPort                 = 8080
	DefaultMaxBodyBytes            = 1 << 20
)

func (c *Config) applyDefaults() {
	// Sender defaults
	if c.Sender.FlushInterval == 0 {
		c.Sender.FlushInterval = DefaultFlushInterval
	}
	if c.Sender.QueueWarnThreshold == 0 {
		c.Sender.QueueWarnThreshold = DefaultQueueWarnThreshold
	}
	if c.Sender.KeepAliveThresholdChars == 0 {
		c.Sender.KeepAliveThresholdChars = DefaultKeepAliveThresholdChars
	}
	if c.Sender.InitialQueueCapacity == 0 {
		c.Sender.InitialQueueCapacity = DefaultInitialQueueCapacity
	}

	// Persistence defaults
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = DefaultBackend
	}
	if c.Persistence.Backend == BackendFile && c.Persistence.Dir == "" {
		c.Persistence.Dir = DefaultStateDir
	}
	if c.Persistence.CheckpointInterval == 0 {
		c.Persistence.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.Persistence.Backend == BackendPostgres {
		applyDBDefaults(&c.Persistence.Postgres)
	}

	// Link defaults
	if c.Link.ReconnectBaseDelay == 0 {
		c.Link.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Link.ReconnectMaxDelay == 0 {
		c.Link.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Link.PingInterval == 0 {
		c.Link.PingInterval = DefaultPingInterval
	}
	if c.Link.PingTimeout == 0 {
		c.Link.PingTimeout = DefaultPingTimeout
	}
	if c.Link.WriteTimeout == 0 {
		c.Link.WriteTimeout = DefaultWriteTimeout
	}

	// API defaults
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.ApplicationName == "" {
		db.ApplicationName = DefaultDBApplicationName
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
