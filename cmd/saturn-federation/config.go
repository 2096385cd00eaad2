// Copyright (C) 2026 ForYouPage Org
//
// This file is part of saturn-federation.
//
// saturn-federation is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// saturn-federation is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with saturn-federation.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from YAML with a handful
// of flag overrides.
type Config struct {
	// ListenAddr is the HTTP listen address, host:port.
	ListenAddr string `yaml:"listen_addr"`

	// BaseURL is the public origin this server is reachable at, for
	// example "https://social.example". Actor and activity IRIs are
	// minted under it.
	BaseURL string `yaml:"base_url"`

	// DatabasePath is the SQLite database file. Empty selects the
	// in-memory store, which loses all state on restart.
	DatabasePath string `yaml:"database_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Actor    ActorConfig    `yaml:"actor"`
	Delivery DeliveryConfig `yaml:"delivery"`

	// AutoAcceptFollows makes the server accept every inbound Follow
	// addressed to its actor. When false, pending follows stay
	// requested until an operator-side Accept is delivered.
	AutoAcceptFollows bool `yaml:"auto_accept_follows"`

	// MaxClockSkew bounds the Date header window on inbound requests.
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`
}

// ActorConfig identifies the local actor this server signs as.
type ActorConfig struct {
	// Username is the local handle; the actor IRI becomes
	// <base_url>/users/<username>.
	Username string `yaml:"username"`

	// PrivateKeyPath is the PEM file holding the actor's RSA private
	// key.
	PrivateKeyPath string `yaml:"private_key_path"`
}

// DeliveryConfig tunes the outbound dispatcher.
type DeliveryConfig struct {
	Workers     int           `yaml:"workers"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	PerHostRate float64       `yaml:"per_host_rate"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{
		ListenAddr:        ":8080",
		LogLevel:          "info",
		AutoAcceptFollows: true,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that have no workable default.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if c.Actor.Username == "" {
		return fmt.Errorf("config: actor.username is required")
	}
	if c.Actor.PrivateKeyPath == "" {
		return fmt.Errorf("config: actor.private_key_path is required")
	}
	return nil
}

// ActorURI is the local actor's IRI.
func (c *Config) ActorURI() string {
	return fmt.Sprintf("%s/users/%s", c.BaseURL, c.Actor.Username)
}

// KeyID is the local actor's signing-key IRI.
func (c *Config) KeyID() string {
	return c.ActorURI() + "#main-key"
}
