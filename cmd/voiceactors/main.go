// Command voiceactors lists the voice actors available to NIJIVOICE_API_KEY,
// for choosing VOICE_ACTOR_ID.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/yuilabs/minami/internal"
	"github.com/yuilabs/minami/internal/voice"
)

func run() error {
	_ = godotenv.Load()

	logger := internal.NewLogger(os.Stderr, "development", os.Getenv("LOG_LEVEL"))

	client, err := voice.New(voice.Config{
		APIKey:  os.Getenv("NIJIVOICE_API_KEY"),
		BaseURL: os.Getenv("NIJIVOICE_BASE_URL"),
		Timeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actors, err := client.ListActors(ctx)
	if err != nil {
		return fmt.Errorf("list voice actors: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, a := range actors {
		fmt.Fprintf(w, "%s\t%s\n", a.ID, a.Name)
	}
	return w.Flush()
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
