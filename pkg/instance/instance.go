package instance

import (
	"os"
	"strings"
)

// idEnvKeys are consulted in order; DYNO covers Heroku-style dynos.
var idEnvKeys = []string{"STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"}

// GetID returns the process instance identifier used in logs and lock owners.
func GetID() string {
	for _, key := range idEnvKeys {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
