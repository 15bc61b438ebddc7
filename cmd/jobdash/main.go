package main

import (
	"context"
	"jobdash-backend/cmd/jobdash/commands"
	"jobdash-backend/lib/serviceutil"
	"jobdash-backend/lib/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	// THEIRSTACK_API_KEY and friends live in a .env for local runs
	godotenv.Load()

	if err := telemetry.SetupFromEnv(context.Background(), "jobdash"); err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	commands.ExecuteContext(context.Background())
}
