package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"
)

var sha256Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

var (
	runGroup string
	runSLA   int64
)

// runCmd implements the original thorctl's top-level "run": create a
// reaction against a pipeline and poll it to completion, printing each
// stage transition as it happens (spec §6, "tails per-stage logs by
// polling"). Distinct from "jobs run", which advances one already-
// claimed job.
var runCmd = &cobra.Command{
	Use:   "run <pipeline> <sha256-or-repo-url>",
	Short: "run a pipeline against a sample or repo and tail its progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, target := args[0], args[1]
		if runGroup == "" {
			return fmt.Errorf("--group is required")
		}

		req := map[string]interface{}{
			"group":    runGroup,
			"pipeline": pipeline,
		}
		if runSLA > 0 {
			req["sla_seconds"] = runSLA
		}
		if sha256Pattern.MatchString(target) {
			fmt.Printf("Running %s on sample %s\n", pipeline, target)
			req["samples"] = []string{target}
		} else {
			fmt.Printf("Running %s on repo %s\n", pipeline, target)
			req["repos"] = []map[string]string{{"URL": target}}
		}

		var reaction struct {
			ID                string `json:"ID"`
			Status            string `json:"Status"`
			CurrentStageIndex int    `json:"CurrentStageIndex"`
		}
		if err := client().Post("/reactions", req, &reaction); err != nil {
			return err
		}
		fmt.Printf("Created reaction: %s\n", reaction.ID)

		return tailReaction(reaction.ID)
	},
}

// tailReaction polls GET /reactions/:id until it reaches a terminal
// status, printing a line every time CurrentStageIndex or Status
// changes (spec §6, "the way the teacher's CLI tools poll CRD status").
func tailReaction(id string) error {
	lastStage := -1
	lastStatus := ""
	for {
		var r struct {
			ID                string `json:"ID"`
			Status            string `json:"Status"`
			CurrentStageIndex int    `json:"CurrentStageIndex"`
		}
		var raw json.RawMessage
		if err := client().Get("/reactions/"+id, &raw); err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		if r.CurrentStageIndex != lastStage {
			fmt.Printf("stage %d: started\n", r.CurrentStageIndex)
			lastStage = r.CurrentStageIndex
		}
		if r.Status != lastStatus {
			fmt.Printf("reaction %s: %s\n", id, r.Status)
			lastStatus = r.Status
		}
		if r.Status == "Completed" || r.Status == "Failed" {
			fmt.Printf("Reaction %s complete!\n", id)
			return nil
		}
		time.Sleep(time.Second)
	}
}

func init() {
	runCmd.Flags().StringVar(&runGroup, "group", "", "group the pipeline belongs to")
	runCmd.Flags().Int64Var(&runSLA, "sla", 0, "SLA in seconds for this reaction (0 uses the pipeline default)")
	rootCmd.AddCommand(runCmd)
}
