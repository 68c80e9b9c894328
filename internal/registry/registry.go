// Package registry resolves the ordered set of channels to ingest.
package registry

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/medlake/medlake/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Channels returns the ordered channel list from the JSON file at path.
// A missing or unreadable file is not an error: the fallback list is
// returned instead, so a run can always proceed.
func Channels(path string, fallback []string, log logger.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("channels file unreadable, using fallback",
				logger.String("path", path), logger.Error(err))
		}
		return fallback
	}

	var channels []string
	if err := json.Unmarshal(data, &channels); err != nil {
		log.Warn("channels file malformed, using fallback",
			logger.String("path", path), logger.Error(err))
		return fallback
	}
	if len(channels) == 0 {
		return fallback
	}

	return channels
}
