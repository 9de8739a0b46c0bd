package main

import (
	"context"
	"log"

	"emberhold/server/internal/app"
)

func main() {
	if err := app.Run(context.Background(), app.Config{}); err != nil {
		log.Fatalf("%v", err)
	}
}
