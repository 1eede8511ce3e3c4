package rules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kamalraji/planit-go/pkg/rules"
)

func TestLoadPercent(t *testing.T) {
	assert.InDelta(t, 50.0, rules.LoadPercent(500, 1000), 0.001)
	assert.InDelta(t, 120.0, rules.LoadPercent(1200, 1000), 0.001)
	assert.Zero(t, rules.LoadPercent(500, 0), "unknown capacity never alerts")
}

func TestBandwidthAlert(t *testing.T) {
	assert.False(t, rules.BandwidthAlert(700, 1000, 80))
	assert.True(t, rules.BandwidthAlert(800, 1000, 80))
	assert.True(t, rules.BandwidthAlert(999, 1000, 80))
}

func TestCircuitStatus(t *testing.T) {
	assert.Equal(t, rules.CircuitNormal, rules.CircuitStatus(10, 20, 80))
	assert.Equal(t, rules.CircuitWarning, rules.CircuitStatus(16, 20, 80))
	assert.Equal(t, rules.CircuitOverloaded, rules.CircuitStatus(20, 20, 80))
	assert.Equal(t, rules.CircuitOverloaded, rules.CircuitStatus(25, 20, 80))
}

func TestLicenseStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	assert.Equal(t, rules.LicenseActive, rules.LicenseStatus(now.AddDate(0, 6, 0), now, window))
	assert.Equal(t, rules.LicenseExpiring, rules.LicenseStatus(now.AddDate(0, 0, 14), now, window))
	assert.Equal(t, rules.LicenseExpired, rules.LicenseStatus(now.AddDate(0, 0, -1), now, window))
	assert.Equal(t, rules.LicenseExpired, rules.LicenseStatus(now, now, window))
}
