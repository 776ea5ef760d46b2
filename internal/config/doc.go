// Package config reads the analytics settings.
//
// Settings live under the app.analytics.generic namespace of an
// application config document:
//
//	app:
//	  analytics:
//	    generic:
//	      host: https://collector.example.com/events
//	      interval: 5            # minutes; 0 sends every event at once
//	      debug: true
//	      basicAuthToken: dXNlcjpwYXNz
//	      bearerAuthToken: token
//	      includeTeamMetadata: true
//
// Documents may be YAML, JSON, or CUE. Every document is checked against
// the embedded CUE schema (schema.cue). PULSE_ANALYTICS_* environment
// variables override values from the file.
//
// Read turns any Source into typed Settings. A missing host is the only
// fatal condition.
package config
