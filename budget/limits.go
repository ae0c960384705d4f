// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits holds daily spend caps per scope. A cap of zero or below
// disables enforcement for that scope.
type Limits struct {
	GlobalDailyCapUSD  float64 `yaml:"global_daily_cap_usd"`
	ProjectDailyCapUSD float64 `yaml:"project_daily_cap_usd"`
	UserDailyCapUSD    float64 `yaml:"user_daily_cap_usd"`
}

// DefaultLimits returns the built-in caps used when no configuration is supplied
func DefaultLimits() Limits {
	return Limits{
		GlobalDailyCapUSD:  1000,
		ProjectDailyCapUSD: 100,
		UserDailyCapUSD:    25,
	}
}

// LoadLimitsFile reads caps from a YAML file. Fields absent from the file
// keep their default values.
func LoadLimitsFile(path string) (Limits, error) {
	limits := DefaultLimits()

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("failed to read limits file: %w", err)
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return DefaultLimits(), fmt.Errorf("failed to parse limits file: %w", err)
	}
	return limits, nil
}
