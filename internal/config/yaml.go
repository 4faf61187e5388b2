package config

import "gopkg.in/yaml.v3"

func marshalYAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
