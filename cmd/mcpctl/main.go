package main

import (
	"context"
	"log"

	"github.com/helioslabs/mcpgate/cmd/mcpctl/cmd"
	"github.com/helioslabs/mcpgate/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("mcpgate-mcpctl")
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
