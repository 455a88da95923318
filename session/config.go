package session

// Config holds session initialization parameters.
type Config struct {
	// DisableExchangeLog drops raw provider exchanges instead of recording them.
	DisableExchangeLog bool `yaml:"disable_exchange_log,omitempty" json:"disable_exchange_log,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.DisableExchangeLog {
		c.DisableExchangeLog = true
	}
}

// New creates a Session from configuration. Sessions are held in memory.
func New(cfg *Config) (Session, error) {
	s := NewMemorySession().(*memorySession)
	if cfg != nil {
		s.discard = cfg.DisableExchangeLog
	}
	return s, nil
}
