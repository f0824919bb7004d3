package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// DefaultPlatform is the platform assumed when a request names none.
	DefaultPlatform string `mapstructure:"default_platform" default:"readmoo"`
}

// Addr returns the listen address for the configured port.
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = "8080"
	}
	return ":" + port
}
