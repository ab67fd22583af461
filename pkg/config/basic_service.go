package config

// BasicService is used as a simple base for optional node services like
// Pprof or Prometheus monitoring.
type BasicService struct {
	Enabled bool `yaml:"enabled"`
	// Addresses holds the list of bind addresses in the form of
	// "address:port".
	Addresses []string `yaml:"addresses"`
}
