package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"cratefm/config"
	"cratefm/core/catalog"
	"cratefm/storage"
)

var (
	snapshotList    bool
	snapshotRestore string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Dump or restore catalog snapshots in MinIO",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		store, err := storage.NewSnapshotStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to snapshot store: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if snapshotList {
			names, err := store.List(ctx)
			if err != nil {
				log.Fatalf("Failed to list snapshots: %v", err)
			}
			if len(names) == 0 {
				fmt.Println("No snapshots found.")
				return
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return
		}

		trackRepo := connectCatalog(cfg)

		if snapshotRestore != "" {
			data, err := store.Download(ctx, snapshotRestore)
			if err != nil {
				log.Fatalf("Failed to download snapshot: %v", err)
			}
			n, err := catalog.ImportAll(trackRepo, data)
			if err != nil {
				log.Fatalf("Failed to restore snapshot: %v", err)
			}
			fmt.Printf("Restored %d tracks from %s\n", n, snapshotRestore)
			return
		}

		data, err := catalog.ExportAll(trackRepo)
		if err != nil {
			log.Fatalf("Failed to export catalog: %v", err)
		}
		name, err := store.Upload(ctx, data)
		if err != nil {
			log.Fatalf("Failed to upload snapshot: %v", err)
		}
		fmt.Printf("Uploaded %s (%d bytes)\n", name, len(data))
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().BoolVarP(&snapshotList, "list", "l", false, "list stored snapshots")
	snapshotCmd.Flags().StringVarP(&snapshotRestore, "restore", "r", "", "restore the named snapshot into the catalog")

	snapshotCmd.Example = `  # dump the catalog
  cratefm snapshot

  # list stored snapshots
  cratefm snapshot -l

  # restore one
  cratefm snapshot -r snapshots/catalog-20260828-120000.json`
}
