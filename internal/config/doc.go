// Package config provides configuration loading and validation for the
// speech regulator service. It handles YAML-based configuration with struct
// validation and covers audio capture, classification, alerting, the
// detection pipeline, and the sensor relay protocol.
package config
