package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"cratefm/config"
	"cratefm/core/spotify"
)

var (
	importQuery string
	importID    string
	importLimit int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tracks from the external metadata source",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		trackRepo := connectCatalog(cfg)

		importer := newImporter(cfg, trackRepo)
		if importer == nil {
			log.Fatal("No metadata source credentials configured (SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var result *spotify.ImportResult
		var err error
		switch {
		case importID != "":
			result, err = importer.ImportTrackByID(ctx, importID)
		case importQuery != "":
			result, err = importer.SearchAndImport(ctx, importQuery, importLimit)
		default:
			log.Fatal("Either --query or --id is required")
		}
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}

		fmt.Printf("Imported %d, failed %d\n", result.Imported, result.Failed)
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		for _, id := range result.TrackIDs {
			fmt.Printf("  %s\n", id)
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importQuery, "query", "q", "", "search query")
	importCmd.Flags().StringVar(&importID, "id", "", "external track id")
	importCmd.Flags().IntVarP(&importLimit, "limit", "l", 20, "maximum search results to import")
}
