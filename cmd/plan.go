package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"cratefm/config"
	"cratefm/model"
)

var (
	planBPMMin   float64
	planBPMMax   float64
	planKey      string
	planGenre    string
	planDuration int
	planNotes    string
	planSeeds    []string
	planNoLLM    bool
	planFinalize bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a crate from prompt flags",
	Long:  `Run the planning pipeline once and print the resulting track order.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		trackRepo := connectCatalog(cfg)
		planRepo := connectPlans(cfg)
		p := newPlanner(cfg, trackRepo, planRepo, !planNoLLM)

		prompt := model.Prompt{
			BPMMin:         planBPMMin,
			BPMMax:         planBPMMax,
			Key:            planKey,
			Genre:          planGenre,
			TargetDuration: planDuration,
			Notes:          planNotes,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		plan, err := p.CreatePlan(ctx, prompt, planSeeds)
		if err != nil {
			log.Fatalf("Planning failed: %v", err)
		}

		fmt.Printf("Plan %s (%d tracks, %dm%02ds total)\n",
			plan.ID, len(plan.TrackIDs), plan.TotalDuration/60, plan.TotalDuration%60)

		tracks, err := trackRepo.GetTracksByIDs(plan.TrackIDs)
		if err != nil {
			log.Fatalf("Failed to resolve plan tracks: %v", err)
		}
		byID := make(map[string]*model.Track, len(tracks))
		for _, tr := range tracks {
			byID[tr.ID] = tr
		}
		for i, id := range plan.TrackIDs {
			if tr := byID[id]; tr != nil {
				fmt.Printf("%3d. %s - %s  (%g bpm, %s, %ds)\n", i+1, tr.Artist, tr.Title, tr.BPM, tr.Key, tr.Duration)
			} else {
				fmt.Printf("%3d. %s\n", i+1, id)
			}
		}
		if plan.Annotations != "" {
			fmt.Printf("\n%s\n", plan.Annotations)
		}

		if planFinalize {
			result, err := p.Finalize(plan)
			if err != nil {
				log.Fatalf("Finalization failed: %v", err)
			}
			if !result.IsValid {
				fmt.Println("\nPlan not finalized:")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
				return
			}
			fmt.Println("\nPlan finalized.")
		}
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().Float64Var(&planBPMMin, "bpm-min", 0, "minimum tempo")
	planCmd.Flags().Float64Var(&planBPMMax, "bpm-max", 0, "maximum tempo")
	planCmd.Flags().StringVar(&planKey, "key", "", "Camelot key, e.g. 8A")
	planCmd.Flags().StringVar(&planGenre, "genre", "", "genre")
	planCmd.Flags().IntVar(&planDuration, "duration", 0, "target duration in seconds")
	planCmd.Flags().StringVar(&planNotes, "notes", "", "free-text notes for the planner")
	planCmd.Flags().StringSliceVar(&planSeeds, "seed", nil, "seed track id, repeatable")
	planCmd.Flags().BoolVar(&planNoLLM, "no-llm", false, "skip model-assisted stages")
	planCmd.Flags().BoolVar(&planFinalize, "finalize", false, "finalize the plan if it validates")

	planCmd.Example = `  # an hour of techno around 8A
  cratefm plan --genre techno --key 8A --bpm-min 124 --bpm-max 130 --duration 3600

  # deterministic planning anchored on two seeds
  cratefm plan --no-llm --seed spotify:abc --seed local:xyz --duration 1800`
}
