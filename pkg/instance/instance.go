package instance

import (
	"os"
	"strings"
)

// GetID names the running process for logs. Heroku's DYNO wins over an
// explicit RETAILHIVE_INSTANCE_ID, falling back to "<kind>-local".
func GetID(kind string) string {
	for _, key := range []string{"DYNO", "RETAILHIVE_INSTANCE_ID"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if kind == "" {
		kind = "retailhive"
	}
	return kind + "-local"
}
