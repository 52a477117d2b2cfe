// Command thorctl is the operator CLI over pkg/api's HTTP surface.
// Grounded on the Lens installer's cobra root-command shape: a
// persistent-flags root plus one file per subcommand tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thorium-sh/thorium/pkg/thorctl"
)

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "thorctl",
	Short: "thorctl controls a Thorium job orchestration server",
	Long: `thorctl is the operator CLI for Thorium: submit samples and repos,
claim and manage jobs, administer the image/pipeline registry, and
manage per-group network policies.

Example:
  thorctl --server http://localhost:8080 --token $TOKEN describe image mygroup/myimage
  thorctl files download <sha256> -o sample.bin
  thorctl network-policies get mygroup default`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "thorium-api base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("THORIUM_TOKEN"), "bearer token (default: $THORIUM_TOKEN)")
}

func client() *thorctl.Client {
	return thorctl.New(serverURL, authToken)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := Execute(); err != nil {
		fatalf("%v", err)
	}
}
