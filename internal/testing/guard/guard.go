// Package guard keeps binaries offline when their main is exercised from tests.
// Import it for side effects before calling main.
package guard

import "os"

// offline lists variables forced for test runs. KAFKA_BROKERS is cleared so a
// developer shell pointing at a real cluster never receives GRN events.
var offline = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"KAFKA_BROKERS":     "",
}

func init() {
	for key, value := range offline {
		if key == "ODYSSEY_TEST_MODE" && os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
