package epipolar

import (
	"fmt"
	"math/rand"
	"time"
)

// ServiceConfig represents the full configuration file
type ServiceConfig struct {
	MQTT   MQTTConfig   `yaml:"mqtt" json:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http" json:"http"`
	RANSAC RansacConfig `yaml:"ransac" json:"ransac"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	RequestTopic  string `yaml:"requestTopic" json:"requestTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// RansacConfig holds estimator settings as written in the config file.
// Zero values fall back to DefaultConfig.
type RansacConfig struct {
	Threshold          float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	MaxIterations      int     `yaml:"maxIterations,omitempty" json:"maxIterations,omitempty"`
	FailureProbability float64 `yaml:"failureProbability,omitempty" json:"failureProbability,omitempty"`
	MinSupport         int     `yaml:"minSupport,omitempty" json:"minSupport,omitempty"`
	MaxTrials          int     `yaml:"maxTrials,omitempty" json:"maxTrials,omitempty"`
	Workers            int     `yaml:"workers,omitempty" json:"workers,omitempty"`
	Seed               *int64  `yaml:"seed,omitempty" json:"seed,omitempty"`             // Fixed PRNG seed; unset seeds from the clock
	Normalizer         string  `yaml:"normalizer,omitempty" json:"normalizer,omitempty"` // "fixed" or "isotropic"
	Scale              float64 `yaml:"scale,omitempty" json:"scale,omitempty"`           // Fixed normalizer scale
	Symmetric          bool    `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
	Refine             bool    `yaml:"refine,omitempty" json:"refine,omitempty"`
	MinSampleSpread    float64 `yaml:"minSampleSpread,omitempty" json:"minSampleSpread,omitempty"`
	Timeout            string  `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration, e.g. "2s"
	Verbose            bool    `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// DefaultServiceConfig returns a configuration with MQTT disabled and the
// HTTP server on port 8080
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MQTT: MQTTConfig{
			RequestTopic:  "epiransac/request",
			PublishPrefix: "epiransac",
			ClientID:      "epiransac",
		},
		HTTP: HTTPConfig{Port: 8080},
		RANSAC: RansacConfig{
			Threshold:          DefaultThreshold,
			MaxIterations:      100000,
			FailureProbability: 0.01,
			MinSupport:         50,
			Workers:            1,
			Normalizer:         "fixed",
			Scale:              DefaultScale,
		},
	}
}

// EstimatorConfig converts file settings into an estimator Config. Each call
// creates a fresh RNG, seeded from Seed when set.
func (rc RansacConfig) EstimatorConfig() (Config, error) {
	norm, err := NewNormalizer(rc.Normalizer, rc.Scale)
	if err != nil {
		return Config{}, err
	}
	seed := time.Now().UnixNano()
	if rc.Seed != nil {
		seed = *rc.Seed
	}
	cfg := Config{
		Threshold:          rc.Threshold,
		MaxIterations:      rc.MaxIterations,
		FailureProbability: rc.FailureProbability,
		MinSupport:         rc.MinSupport,
		MaxTrials:          rc.MaxTrials,
		Workers:            rc.Workers,
		Normalizer:         norm,
		Symmetric:          rc.Symmetric,
		Refine:             rc.Refine,
		MinSampleSpread:    rc.MinSampleSpread,
		Verbose:            rc.Verbose,
		RNG:                rand.New(rand.NewSource(seed)),
	}
	return cfg.withDefaults(), nil
}

// TimeoutDuration parses Timeout; empty means no timeout
func (rc RansacConfig) TimeoutDuration() (time.Duration, error) {
	if rc.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(rc.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing ransac.timeout: %w", err)
	}
	return d, nil
}

// Validate checks value ranges
func (rc RansacConfig) Validate() error {
	if rc.Threshold < 0 {
		return fmt.Errorf("ransac.threshold must not be negative")
	}
	if rc.FailureProbability < 0 || rc.FailureProbability >= 1 {
		return fmt.Errorf("ransac.failureProbability must be in [0, 1)")
	}
	if rc.MaxIterations < 0 || rc.MaxTrials < 0 || rc.Workers < 0 || rc.MinSupport < 0 {
		return fmt.Errorf("ransac counts must not be negative")
	}
	if _, err := NewNormalizer(rc.Normalizer, rc.Scale); err != nil {
		return fmt.Errorf("ransac.normalizer: %w", err)
	}
	if _, err := rc.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}
