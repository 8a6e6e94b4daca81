package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Sender.FlushInterval <= 0 {
		return errors.New("sender.flush_interval must be > 0")
	}
	if c.Sender.QueueWarnThreshold < 1 {
		return errors.New("sender.queue_warn_threshold must be >= 1")
	}
	if c.Sender.KeepAliveThresholdChars < 0 {
		return errors.New("sender.keep_alive_threshold_chars must be >= 0")
	}

	switch c.Persistence.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Persistence.Dir == "" {
			return errors.New("persistence.dir is required for the file backend")
		}
	case BackendPostgres:
		if err := c.Persistence.Postgres.validate("persistence.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("persistence.backend must be one of memory, file, postgres, got %q", c.Persistence.Backend)
	}
	if c.Persistence.CheckpointInterval < 0 {
		return errors.New("persistence.checkpoint_interval must be >= 0")
	}

	if c.Link.URL != "" {
		if c.Link.KeyID != "" && c.Link.PrivateKeyPath == "" {
			return errors.New("link.private_key_path is required when link.key_id is set")
		}
		if c.Link.ReconnectMaxDelay < c.Link.ReconnectBaseDelay {
			return fmt.Errorf("link.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
				c.Link.ReconnectMaxDelay, c.Link.ReconnectBaseDelay)
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}
	if c.API.MaxBodyBytes < 1 {
		return errors.New("api.max_body_bytes must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
