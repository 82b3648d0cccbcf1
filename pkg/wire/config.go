package wire

import (
	"encoding/json"
	"fmt"
)

// Display defaults applied when a register has no config.
const (
	DefaultDisplayMin = 0
	DefaultDisplayMax = 100
	DefaultLowWarn    = 10
	DefaultHighWarn   = 90
	DefaultLowFault   = 5
	DefaultHighFault  = 95
	DefaultColor      = "#f59e0b"
)

// RegisterConfig describes how one register index is scaled and displayed.
// Configs are always delivered as a full array, never patched.
type RegisterConfig struct {
	Scale      float64 `json:"scale"`
	Offset     float64 `json:"offset"`
	DisplayMin float64 `json:"displayMin"`
	DisplayMax float64 `json:"displayMax"`
	LowWarn    float64 `json:"lowWarn"`
	HighWarn   float64 `json:"highWarn"`
	LowFault   float64 `json:"lowFault"`
	HighFault  float64 `json:"highFault"`
	Color      string  `json:"color,omitempty"`
}

// Apply rescales a raw register value.
func (c *RegisterConfig) Apply(raw uint8) float64 {
	return float64(raw)*c.Scale + c.Offset
}

// DefaultRegisterConfig returns an identity config with default display ranges.
func DefaultRegisterConfig() RegisterConfig {
	return RegisterConfig{
		Scale:      1,
		DisplayMin: DefaultDisplayMin,
		DisplayMax: DefaultDisplayMax,
		LowWarn:    DefaultLowWarn,
		HighWarn:   DefaultHighWarn,
		LowFault:   DefaultLowFault,
		HighFault:  DefaultHighFault,
		Color:      DefaultColor,
	}
}

// ConfigSet is the {configs:[...]} form a data push may use to carry configs.
type ConfigSet struct {
	Configs []*RegisterConfig `json:"configs"`
}

// DecodeConfigs accepts either a bare config array (config pushes) or a
// {configs:[...]} object (data pushes). ok is false when data carries neither.
func DecodeConfigs(data json.RawMessage) (configs []*RegisterConfig, ok bool, err error) {
	if len(data) == 0 {
		return nil, false, nil
	}
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &configs); err != nil {
			return nil, false, fmt.Errorf("%w: config array: %v", ErrMalformedEnvelope, err)
		}
		return configs, true, nil
	case '{':
		var set struct {
			Configs *[]*RegisterConfig `json:"configs"`
		}
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, false, fmt.Errorf("%w: config object: %v", ErrMalformedEnvelope, err)
		}
		if set.Configs == nil {
			return nil, false, nil
		}
		return *set.Configs, true, nil
	}
	return nil, false, nil
}
