// Package featureflags reads on/off switches from the environment.
package featureflags

import (
	"os"
	"strings"
)

// StockHold makes reservations take stock out of inventory on create and
// give it back when they are cancelled or expire.
const StockHold = "stock_hold"

// Known lists every flag the service reads
var Known = []string{StockHold}

// Enabled reports whether FLAG_<NAME> is set to 1, true, yes or on (any case)
func Enabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("FLAG_" + strings.ToUpper(name)))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Snapshot returns the state of every known flag, for startup logging
func Snapshot() map[string]bool {
	out := make(map[string]bool, len(Known))
	for _, name := range Known {
		out[name] = Enabled(name)
	}
	return out
}
