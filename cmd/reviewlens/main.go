package main

import (
	"reviewlens-client/cmd/reviewlens/commands"
	"reviewlens-client/lib/serviceutil"
	"reviewlens-client/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "reviewlens")
	commands.ExecuteContext(ctx)
}
