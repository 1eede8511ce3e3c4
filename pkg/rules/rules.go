// Package rules holds the stateless threshold functions behind derived
// statuses: network zone bandwidth alerts, power circuit load and
// license expiry. They are evaluated at read time from current metrics
// and configured thresholds, never stored as derived columns, and are
// shared between the optimistic-patch path and reconciliation.
package rules

import "time"

// LoadPercent is the utilization of a capacity, clamped at zero when
// the capacity itself is unknown.
func LoadPercent(used, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return used / capacity * 100
}

// BandwidthAlert reports whether a network zone's bandwidth use has
// crossed its alert threshold (a percentage of capacity).
func BandwidthAlert(usedMbps, capacityMbps, thresholdPercent float64) bool {
	return LoadPercent(usedMbps, capacityMbps) >= thresholdPercent
}

// CircuitState classifies a power circuit by load.
type CircuitState string

const (
	CircuitNormal     CircuitState = "normal"
	CircuitWarning    CircuitState = "warning"
	CircuitOverloaded CircuitState = "overloaded"
)

// CircuitStatus derives the circuit state from its current draw, its
// rating and the warning threshold (a percentage of the rating).
func CircuitStatus(currentAmps, ratedAmps, warnPercent float64) CircuitState {
	load := LoadPercent(currentAmps, ratedAmps)
	switch {
	case load >= 100:
		return CircuitOverloaded
	case load >= warnPercent:
		return CircuitWarning
	}
	return CircuitNormal
}

// LicenseState classifies a license by proximity to its expiry.
type LicenseState string

const (
	LicenseActive   LicenseState = "active"
	LicenseExpiring LicenseState = "expiring"
	LicenseExpired  LicenseState = "expired"
)

// LicenseStatus derives the license state at a point in time.
// warnWindow is how long before expiry the license counts as expiring.
func LicenseStatus(expiresAt, now time.Time, warnWindow time.Duration) LicenseState {
	switch {
	case !expiresAt.After(now):
		return LicenseExpired
	case !expiresAt.After(now.Add(warnWindow)):
		return LicenseExpiring
	}
	return LicenseActive
}
