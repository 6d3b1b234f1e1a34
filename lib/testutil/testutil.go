package testutil

import (
	"fmt"
	"testing"

	"reviewlens-client/lib/kvstore"
	"reviewlens-client/lib/telemetry"
)

// Setup prepares the shared test environment: telemetry (when a
// telemetry.json5 is reachable) and a fresh in-memory store.
func Setup(t testing.TB, name string) (kvstore.Store, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", name))
	return kvstore.NewMemory(), cleanup
}
