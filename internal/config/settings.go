package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/pulse/internal/engine"
)

// Config keys read by Read.
const (
	Namespace              = "app.analytics.generic"
	KeyHost                = Namespace + ".host"
	KeyInterval            = Namespace + ".interval"
	KeyDebug               = Namespace + ".debug"
	KeyBasicAuthToken      = Namespace + ".basicAuthToken"
	KeyBearerAuthToken     = Namespace + ".bearerAuthToken"
	KeyAuthToken           = Namespace + ".authToken"
	KeyIncludeTeamMetadata = Namespace + ".includeTeamMetadata"
)

var (
	errNegativeInterval  = errors.New("interval must not be negative")
	errIntervalNotFinite = errors.New("interval must be a finite number")
	errIntervalTooLarge  = fmt.Errorf("interval must not exceed %.0f minutes", maxIntervalMinutes)
	errIntervalTooSmall  = errors.New("positive interval is shorter than one nanosecond")
)

// maxIntervalMinutes is the longest interval a time.Duration can hold.
var maxIntervalMinutes = float64(math.MaxInt64) / float64(time.Minute)

// Settings is the typed analytics configuration.
type Settings struct {
	// Host is the collector endpoint. Required.
	Host string

	// Interval is the flush period. Zero selects instant delivery.
	Interval time.Duration

	Debug               bool
	BasicAuthToken      string
	BearerAuthToken     string
	IncludeTeamMetadata bool
}

// Read extracts Settings from src. A missing host, an out-of-range interval,
// or a value of the wrong type is a configuration error.
//
// Defaults: interval 30 minutes, debug off, team metadata off. debug may
// also be given as the string "true". The legacy authToken key is used
// for basic auth when basicAuthToken is not set.
func Read(src Source) (Settings, error) {
	var s Settings

	host, err := src.String(KeyHost)
	if err != nil {
		return Settings{}, engine.NewConfigError(KeyHost, err)
	}
	s.Host = host

	minutes, ok, err := src.OptionalNumber(KeyInterval)
	if err != nil {
		return Settings{}, engine.NewConfigError(KeyInterval, err)
	}
	if ok {
		if err := checkInterval(minutes); err != nil {
			return Settings{}, engine.NewConfigError(KeyInterval, err)
		}
		s.Interval = engine.IntervalFromMinutes(&minutes)
	} else {
		s.Interval = engine.IntervalFromMinutes(nil)
	}

	if s.Debug, err = readDebug(src); err != nil {
		return Settings{}, engine.NewConfigError(KeyDebug, err)
	}

	if s.BasicAuthToken, _, err = src.OptionalString(KeyBasicAuthToken); err != nil {
		return Settings{}, engine.NewConfigError(KeyBasicAuthToken, err)
	}
	if s.BasicAuthToken == "" {
		if s.BasicAuthToken, _, err = src.OptionalString(KeyAuthToken); err != nil {
			return Settings{}, engine.NewConfigError(KeyAuthToken, err)
		}
	}
	if s.BearerAuthToken, _, err = src.OptionalString(KeyBearerAuthToken); err != nil {
		return Settings{}, engine.NewConfigError(KeyBearerAuthToken, err)
	}

	if s.IncludeTeamMetadata, _, err = src.OptionalBool(KeyIncludeTeamMetadata); err != nil {
		return Settings{}, engine.NewConfigError(KeyIncludeTeamMetadata, err)
	}

	return s, nil
}

// checkInterval rejects intervals that would not survive conversion to a
// time.Duration with their mode intact: 0 stays instant, anything positive
// must stay positive.
func checkInterval(minutes float64) error {
	switch {
	case math.IsNaN(minutes) || math.IsInf(minutes, 0):
		return errIntervalNotFinite
	case minutes < 0:
		return errNegativeInterval
	case minutes*float64(time.Minute) >= float64(math.MaxInt64):
		return errIntervalTooLarge
	case minutes > 0 && minutes*float64(time.Minute) < 1:
		return errIntervalTooSmall
	}
	return nil
}

// readDebug accepts a boolean or the string "true".
func readDebug(src Source) (bool, error) {
	b, ok, err := src.OptionalBool(KeyDebug)
	if err == nil {
		return ok && b, nil
	}
	str, ok, strErr := src.OptionalString(KeyDebug)
	if strErr != nil {
		return false, err
	}
	return ok && str == "true", nil
}
