package main

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "claim and manage jobs",
}

var (
	claimWorker string
	claimLimit  int
)

var jobsClaimCmd = &cobra.Command{
	Use:   "claim <group> <pipeline> <stage>",
	Short: "claim up to --limit runnable jobs at a pipeline stage",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		req := map[string]interface{}{
			"group":    args[0],
			"pipeline": args[1],
			"stage":    stage,
			"worker":   claimWorker,
			"limit":    claimLimit,
		}
		var out json.RawMessage
		if err := client().Post("/jobs/claim", req, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id> {proceed|error|sleep|checkpoint}",
	Short: "advance a claimed job's state",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]interface{}{
			"action": args[1],
			"worker": claimWorker,
		}
		if len(args) == 3 {
			switch args[1] {
			case "error":
				req["reason"] = args[2]
			case "sleep":
				req["checkpoint"] = args[2]
			}
		}
		var out json.RawMessage
		if err := client().Post("/jobs/"+args[0]+"/handle", req, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	jobsClaimCmd.Flags().StringVar(&claimWorker, "worker", "", "claiming worker's name")
	jobsClaimCmd.Flags().IntVar(&claimLimit, "limit", 1, "maximum jobs to claim")
	jobsCmd.AddCommand(jobsClaimCmd)

	jobsRunCmd.Flags().StringVar(&claimWorker, "worker", "", "claiming worker's name")
	jobsCmd.AddCommand(jobsRunCmd)

	rootCmd.AddCommand(jobsCmd)
}
