package overrides

type Config struct {
	Global GlobalConfig `yaml:"global,omitempty"`
}

type GlobalConfig struct {
	LogLevel string `yaml:"logLevel,omitempty"`
}
