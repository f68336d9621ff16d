/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package nodeconfig loads the validator network core's gcfg-based
// configuration file and applies environment variable overrides.
package nodeconfig

import (
	"errors"
	"time"

	"github.com/gravwell/gcfg"
)

const (
	envLogLevel     = "VEXOR_LOG_LEVEL"
	envShredVersion = "VEXOR_SHRED_VERSION"

	defaultLogLevel = "ERROR"
)

var (
	ErrNoEntrypoints   = errors.New("no gossip entrypoints configured")
	ErrInvalidInterval = errors.New("invalid interval, must be positive")
)

// Global is the top-level gcfg-parsed configuration file for a validator
// network core instance. Field names follow gcfg's exported-identifier
// convention.
type Global struct {
	Log_Level         string
	Gossip_Port       uint16
	Gossip_Entrypoint []string
	Tvu_Port          uint16
	Repair_Port       uint16
	Tpu_Port          uint16
	Shred_Version     uint16
	Pull_Interval_Ms  int
	Push_Interval_Ms  int
	Ping_Interval_Ms  int
	Prune_Interval_Ms int
	Max_Push_Fanout   int
	Tx_Queue_Capacity int
}

// Config is the parsed, defaulted, and validated node configuration.
type Config struct {
	Global

	LogLevel string
}

func (g *Global) loadDefaults() error {
	if err := loadEnvVar(&g.Log_Level, envLogLevel, defaultLogLevel); err != nil {
		return err
	}
	if g.Gossip_Port == 0 {
		g.Gossip_Port = 8001
	}
	if g.Tvu_Port == 0 {
		g.Tvu_Port = 8002
	}
	if g.Repair_Port == 0 {
		g.Repair_Port = 8003
	}
	if g.Tpu_Port == 0 {
		g.Tpu_Port = 8004
	}
	if g.Pull_Interval_Ms == 0 {
		g.Pull_Interval_Ms = 15000
	}
	if g.Push_Interval_Ms == 0 {
		g.Push_Interval_Ms = 500
	}
	if g.Ping_Interval_Ms == 0 {
		g.Ping_Interval_Ms = 2000
	}
	if g.Prune_Interval_Ms == 0 {
		g.Prune_Interval_Ms = 10000
	}
	if g.Max_Push_Fanout == 0 {
		g.Max_Push_Fanout = 6
	}
	if g.Tx_Queue_Capacity == 0 {
		g.Tx_Queue_Capacity = 4096
	}
	return nil
}

// Verify checks the loaded config for internal consistency, applying
// defaults and environment overrides first.
func (g *Global) Verify() error {
	if err := g.loadDefaults(); err != nil {
		return err
	}
	if len(g.Gossip_Entrypoint) == 0 {
		return ErrNoEntrypoints
	}
	if g.Pull_Interval_Ms <= 0 || g.Push_Interval_Ms <= 0 || g.Ping_Interval_Ms <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// PullInterval returns the configured pull cadence as a time.Duration.
func (g *Global) PullInterval() time.Duration {
	return time.Duration(g.Pull_Interval_Ms) * time.Millisecond
}

// PushInterval returns the configured push cadence as a time.Duration.
func (g *Global) PushInterval() time.Duration {
	return time.Duration(g.Push_Interval_Ms) * time.Millisecond
}

// PingInterval returns the configured ping cadence as a time.Duration.
func (g *Global) PingInterval() time.Duration {
	return time.Duration(g.Ping_Interval_Ms) * time.Millisecond
}

// PruneInterval returns the configured CRDS pruning cadence.
func (g *Global) PruneInterval() time.Duration {
	return time.Duration(g.Prune_Interval_Ms) * time.Millisecond
}

// LoadConfigBytes parses b as a gcfg file into a fresh Config, verifying
// and defaulting the result.
func LoadConfigBytes(b []byte) (*Config, error) {
	var cfg struct {
		Global Global
	}
	if err := gcfg.ReadStringInto(&cfg, string(b)); err != nil {
		return nil, err
	}
	if err := cfg.Global.Verify(); err != nil {
		return nil, err
	}
	return &Config{Global: cfg.Global, LogLevel: cfg.Global.Log_Level}, nil
}
