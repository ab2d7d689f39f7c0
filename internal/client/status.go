package client

import (
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// Cache usage levels.
const (
	LevelGood     = "good"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// CleanupStatus is the upstream event cache state.
type CleanupStatus struct {
	CurrentCacheSize     int64   `json:"currentCacheSize"`
	MaxCacheSize         int64   `json:"maxCacheSize"`
	OldestEventAgeDays   float64 `json:"oldestEventAgeDays"`
	AutoCleanupEnabled   bool    `json:"autoCleanupEnabled"`
	CleanupIntervalHours float64 `json:"cleanupIntervalHours"`
}

// UnmarshalJSON tolerates fractional sizes and clamps negative sizes to 0.
func (s *CleanupStatus) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidJSON
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return errNotObject
	}
	*s = CleanupStatus{
		CurrentCacheSize:     max(r.Get("currentCacheSize").Int(), 0),
		MaxCacheSize:         max(r.Get("maxCacheSize").Int(), 0),
		OldestEventAgeDays:   r.Get("oldestEventAgeDays").Float(),
		AutoCleanupEnabled:   r.Get("autoCleanupEnabled").Bool(),
		CleanupIntervalHours: r.Get("cleanupIntervalHours").Float(),
	}
	return nil
}

// UsagePercent is current/max as a rounded percentage, 0 when max is unset.
func (s CleanupStatus) UsagePercent() int {
	if s.MaxCacheSize <= 0 {
		return 0
	}
	return int(math.Round(float64(s.CurrentCacheSize) / float64(s.MaxCacheSize) * 100))
}

// Level classifies usage: critical from 90%, warning from 70%.
func (s CleanupStatus) Level() string {
	switch p := s.UsagePercent(); {
	case p >= 90:
		return LevelCritical
	case p >= 70:
		return LevelWarning
	default:
		return LevelGood
	}
}

// FormatNumber prints whole numbers without a fraction.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CleanupResult is the answer to a cleanup request.
type CleanupResult struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	DeletedCount int            `json:"deletedCount"`
	Status       *CleanupStatus `json:"status,omitempty"`
}
