package chassis

import "fmt"

// Option configures a Config, following the functional-options pattern
// (spec §6's configuration table, realized as options rather than a
// struct literal so zero-value fields never silently disable validation).
type Option func(*Config) error

// WithMaxConnections sets M, the slot capacity for layers above 0.
func WithMaxConnections(m int) Option {
	return func(c *Config) error {
		if m <= 0 {
			return fmt.Errorf("chassis: WithMaxConnections: m must be positive")
		}
		c.MaxConnections = m
		return nil
	}
}

// WithM0 sets M0, the slot capacity for layer 0.
func WithM0(m0 int) Option {
	return func(c *Config) error {
		if m0 <= 0 {
			return fmt.Errorf("chassis: WithM0: m0 must be positive")
		}
		c.M0 = m0
		return nil
	}
}

// WithEfConstruction sets the candidate pool size used while inserting.
func WithEfConstruction(ef int) Option {
	return func(c *Config) error {
		if ef <= 0 {
			return fmt.Errorf("chassis: WithEfConstruction: ef must be positive")
		}
		c.EfConstruction = ef
		return nil
	}
}

// WithEfSearch sets the default candidate pool size used while searching.
func WithEfSearch(ef int) Option {
	return func(c *Config) error {
		if ef <= 0 {
			return fmt.Errorf("chassis: WithEfSearch: ef must be positive")
		}
		c.EfSearch = ef
		return nil
	}
}

// WithML sets the layer-selection multiplier.
func WithML(ml float64) Option {
	return func(c *Config) error {
		if ml <= 0 {
			return fmt.Errorf("chassis: WithML: ml must be positive")
		}
		c.ML = ml
		return nil
	}
}

// WithMaxLayers sets the maximum graph depth (affects R).
func WithMaxLayers(n int) Option {
	return func(c *Config) error {
		if n <= 0 || n > 255 {
			return fmt.Errorf("chassis: WithMaxLayers: n must be in (0, 255]")
		}
		c.MaxLayers = n
		return nil
	}
}

// WithMetric chooses the squared or rooted Euclidean distance variant.
func WithMetric(m Metric) Option {
	return func(c *Config) error {
		c.Metric = m
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics collection.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// WithLogLevel sets the logrus level ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

// WithRandomSeed fixes the seed used for HNSW level generation, for
// reproducible tests.
func WithRandomSeed(seed int64) Option {
	return func(c *Config) error {
		c.RandomSeed = seed
		return nil
	}
}
