package sqlquery

// Config describes one read-only SQL data source exposed as a tool.
type Config struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Driver        string   `yaml:"driver" json:"driver"`
	DSN           string   `yaml:"dsn" json:"dsn"`
	IncludeSchema bool     `yaml:"include_schema,omitempty" json:"include_schema,omitempty"`
	SchemaFilter  []string `yaml:"schema_filter,omitempty" json:"schema_filter,omitempty"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultName = "query_data"
)

// DefaultConfig returns a config for a SQLite data source with the
// conventional tool name.
func DefaultConfig() Config {
	return Config{
		Name:        defaultName,
		Description: "Run a read-only SQL query against the database",
		Driver:      DriverSQLite,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Description != "" {
		c.Description = source.Description
	}
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.DSN != "" {
		c.DSN = source.DSN
	}
	if source.IncludeSchema {
		c.IncludeSchema = true
	}
	if len(source.SchemaFilter) > 0 {
		c.SchemaFilter = source.SchemaFilter
	}
}
