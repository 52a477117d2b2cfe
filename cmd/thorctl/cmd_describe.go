package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe {image|pipeline} <group>/<name>",
	Short: "print the full record for an image or pipeline",
	Args:  cobra.ExactArgs(2),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	kind, ref := args[0], args[1]
	group, name, err := splitGroupName(ref)
	if err != nil {
		return err
	}

	var path string
	switch kind {
	case "image":
		path = "/groups/" + group + "/images/" + name
	case "pipeline":
		path = "/groups/" + group + "/pipelines/" + name
	default:
		return fmt.Errorf("unknown resource kind %q (want image or pipeline)", kind)
	}

	var out json.RawMessage
	if err := client().Get(path, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(raw json.RawMessage) error {
	var pretty interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	b, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func splitGroupName(ref string) (group, name string, err error) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '/' {
			return ref[:i], ref[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected <group>/<name>, got %q", ref)
}
