package config

import "time"

// Config is the root configuration for the mediaroute daemon.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Sender      SenderConfig      `yaml:"sender"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Link        LinkConfig        `yaml:"link"`
	API         APIConfig         `yaml:"api"`
}

// InstanceConfig identifies this provider process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SenderConfig tunes route message buffering and batching.
type SenderConfig struct {
	FlushInterval           time.Duration `yaml:"flush_interval"`
	QueueWarnThreshold      int           `yaml:"queue_warn_threshold"`
	KeepAliveThresholdChars int           `yaml:"keep_alive_threshold_chars"`
	InitialQueueCapacity    int           `yaml:"initial_queue_capacity"`
}

// Persistence backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// PersistenceConfig selects where suspended state is kept.
type PersistenceConfig struct {
	Backend            string        `yaml:"backend"`
	Dir                string        `yaml:"dir"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	Postgres           DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single PostgreSQL connection's settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	// Schema sets search_path so route_state can live outside public.
	Schema          string `yaml:"schema"`
	ApplicationName string `yaml:"application_name"`
}

// LinkConfig configures the websocket link to the Media Router.
type LinkConfig struct {
	// URL is empty when the daemon runs without a router, e.g. in tests.
	URL                string        `yaml:"url"`
	KeyID              string        `yaml:"key_id"`
	PrivateKeyPath     string        `yaml:"private_key_path"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// APIConfig configures the provider HTTP API.
type APIConfig struct {
	Port         int    `yaml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	Token        string `yaml:"token"` // optional bearer token for /v1 routes
}
