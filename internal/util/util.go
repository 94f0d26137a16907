// Package util provides shared helpers: proxy-aware HTTP client setup and
// log level management.
package util

import (
	log "github.com/sirupsen/logrus"
)

// SetLogLevel switches the shared logrus instance between debug and info.
func SetLogLevel(debug bool) {
	currentLevel := log.GetLevel()
	if debug {
		if currentLevel != log.DebugLevel {
			log.SetLevel(log.DebugLevel)
			log.Debug("debug mode enabled")
		}
		return
	}
	if currentLevel != log.InfoLevel {
		log.SetLevel(log.InfoLevel)
	}
}
