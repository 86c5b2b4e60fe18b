package main

import (
	"context"
	"log"

	"user-image-service/cmd/api/app"
	"user-image-service/cmd/api/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application exited with error: %v", err)
	}
}

func run() error {
	ctx, stop := server.WithSignal(context.Background())
	defer stop()

	a, err := app.New()
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
