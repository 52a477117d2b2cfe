package main

import (
	"os"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "download sample metadata records",
}

var filesDownloadOut string

var filesDownloadCmd = &cobra.Command{
	Use:   "download <sha256>",
	Short: "write a sample's JSON metadata record (not its bytes) to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := filesDownloadOut
		if out == "" {
			out = args[0]
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		return client().Download("/files/"+args[0], f)
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "download source repo metadata records",
}

var reposDownloadOut string

var reposDownloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "write a repo's JSON metadata record (not an archive) to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := reposDownloadOut
		if out == "" {
			out = "repo.tar.gz"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		return client().Download("/repos?url="+args[0], f)
	},
}

func init() {
	filesDownloadCmd.Flags().StringVarP(&filesDownloadOut, "output", "o", "", "output file path (default: the sha256)")
	filesCmd.AddCommand(filesDownloadCmd)
	rootCmd.AddCommand(filesCmd)

	reposDownloadCmd.Flags().StringVarP(&reposDownloadOut, "output", "o", "", "output file path (default: repo.tar.gz)")
	reposCmd.AddCommand(reposDownloadCmd)
	rootCmd.AddCommand(reposCmd)
}
