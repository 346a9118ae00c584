// Package suppress implements half-duplex echo suppression: an energy-based
// hysteresis controller that mutes local capture while strong remote audio is
// playing and restores it after a sustained quiet period.
package suppress
