// Package config handles configuration loading and management for apitest.
//
// It provides functionality for:
//   - Loading configuration from .apitest.yaml / apitest.yaml files
//   - Default configuration values
//   - Application key override from the environment
package config
