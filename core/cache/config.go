package cache

// Config holds configuration for the cache manager.
type Config struct {
	// Enabled toggles caching globally. When false every Get is a miss.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Size is the maximum number of entries per partition.
	Size int `mapstructure:"size" default:"1000"`
	// TTLSeconds is the default entry time-to-live in seconds.
	TTLSeconds int `mapstructure:"ttl_seconds" default:"1800"`
	// Eviction selects the eviction policy (lru, lfu, ttl).
	Eviction string `mapstructure:"eviction" default:"lru"`
	// Persistent enables the object-storage backed tier.
	Persistent bool `mapstructure:"persistent" default:"false"`
}

const (
	EvictionLRU = "lru"
	EvictionLFU = "lfu"
	EvictionTTL = "ttl"
)

// IsValidEviction checks if the configured eviction policy is valid.
func (c Config) IsValidEviction() bool {
	switch c.Eviction {
	case EvictionLRU, EvictionLFU, EvictionTTL:
		return true
	default:
		return false
	}
}
