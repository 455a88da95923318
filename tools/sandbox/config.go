package sandbox

// Config selects the interpreter and temp file layout used for each run.
type Config struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Interpreter string   `yaml:"interpreter" json:"interpreter"`
	Args        []string `yaml:"args,omitempty" json:"args,omitempty"`
	TempDir     string   `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`
	Suffix      string   `yaml:"suffix,omitempty" json:"suffix,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Name:        "execute_code",
		Description: "Run a program with optional data values passed as a command line argument",
		Interpreter: "python3",
		Suffix:      ".py",
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
	if source.Interpreter != "" {
		c.Interpreter = source.Interpreter
	}
	if len(source.Args) > 0 {
		c.Args = source.Args
	}
	if source.TempDir != "" {
		c.TempDir = source.TempDir
	}
	if source.Suffix != "" {
		c.Suffix = source.Suffix
	}
}
