// Package chassis is the public facade over the embedded single-file
// vector-similarity engine: it sequences storage open, vector/node insert,
// search, commit, and close. It does no I/O of its own beyond delegating
// to internal/storage, internal/graph, internal/link, and internal/search.
package chassis

import (
	"fmt"
	"math"

	"github.com/chassisdb/chassis/internal/graph"
)

// Metric selects the distance variant a file is built with.
type Metric int

const (
	MetricEuclideanSquared Metric = iota
	MetricEuclideanRooted
)

func (m Metric) graphMetric() graph.Metric {
	if m == MetricEuclideanRooted {
		return graph.MetricEuclideanRooted
	}
	return graph.MetricEuclideanSquared
}

// Config holds the options recognized on Open (spec §6 "Programmatic
// surface"). The graph options (MaxConnections through Metric) are
// recorded when a file is created and are immutable afterwards; EfSearch
// may additionally be overridden per query via DB.Search's efSearch
// argument.
type Config struct {
	MaxConnections int // M: slot capacity for layer > 0
	M0             int // slot capacity for layer 0
	EfConstruction int // candidate pool size during insert
	EfSearch       int // default candidate pool size during search
	ML             float64
	MaxLayers      int
	Metric         Metric

	MetricsEnabled bool
	LogLevel       string
	RandomSeed     int64
}

func defaultConfig() *Config {
	m := 16
	return &Config{
		MaxConnections: m,
		M0:             2 * m,
		EfConstruction: 200,
		EfSearch:       50,
		ML:             1.0 / math.Log(float64(m)),
		MaxLayers:      16,
		Metric:         MetricEuclideanSquared,
		MetricsEnabled: true,
		LogLevel:       "info",
		RandomSeed:     1,
	}
}

func (c *Config) validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("chassis: MaxConnections must be positive")
	}
	if c.M0 <= 0 {
		return fmt.Errorf("chassis: M0 must be positive")
	}
	if c.EfConstruction <= 0 {
		return fmt.Errorf("chassis: EfConstruction must be positive")
	}
	if c.EfSearch <= 0 {
		return fmt.Errorf("chassis: EfSearch must be positive")
	}
	if c.MaxLayers <= 0 || c.MaxLayers > 255 {
		return fmt.Errorf("chassis: MaxLayers must be in (0, 255]")
	}
	return nil
}
