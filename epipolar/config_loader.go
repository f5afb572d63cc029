package epipolar

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file. Fields absent
// from the file keep the values of DefaultServiceConfig.
func LoadConfig(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultServiceConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.RANSAC.Validate(); err != nil {
		return nil, err
	}
	if config.HTTP.Port < 0 || config.HTTP.Port > 65535 {
		return nil, fmt.Errorf("http.port %d out of range", config.HTTP.Port)
	}
	if config.MQTT.Broker != "" && config.MQTT.RequestTopic == "" {
		return nil, fmt.Errorf("mqtt.requestTopic is required when mqtt.broker is set")
	}

	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *ServiceConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
