package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/thorium-sh/thorium/pkg/netpolicy"
)

var netPoliciesCmd = &cobra.Command{
	Use:     "network-policies",
	Aliases: []string{"netpol"},
	Short:   "manage the named network policies images reference",
}

var netPoliciesGetCmd = &cobra.Command{
	Use:   "get <group> <name>",
	Short: "fetch a network policy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p netpolicy.Policy
		if err := client().Get("/groups/"+args[0]+"/network-policies/"+args[1], &p); err != nil {
			return err
		}
		return printPolicy(p)
	},
}

var netPoliciesDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "print the baseline policy applied when an image names none",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var p netpolicy.Policy
		if err := client().Get("/network-policies/default", &p); err != nil {
			return err
		}
		return printPolicy(p)
	},
}

var netPoliciesDescribeCmd = &cobra.Command{
	Use:   "describe <group>",
	Short: "list every network policy defined in a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out json.RawMessage
		if err := client().Get("/groups/"+args[0]+"/network-policies", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var netPolicyFile string

func loadPolicyFile(group, name string) (netpolicy.Policy, error) {
	var p netpolicy.Policy
	if netPolicyFile == "" {
		return p, nil
	}
	b, err := os.ReadFile(netPolicyFile)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, err
	}
	p.Group, p.Name = group, name
	return p, nil
}

var netPoliciesCreateCmd = &cobra.Command{
	Use:   "create <group> <name> -f policy.yaml",
	Short: "create a network policy from a YAML file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicyFile(args[0], args[1])
		if err != nil {
			return err
		}
		var out netpolicy.Policy
		return client().Post("/groups/"+args[0]+"/network-policies", p, &out)
	},
}

var netPoliciesUpdateCmd = &cobra.Command{
	Use:   "update <group> <name> -f policy.yaml",
	Short: "replace a network policy's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicyFile(args[0], args[1])
		if err != nil {
			return err
		}
		var out netpolicy.Policy
		return client().Put("/groups/"+args[0]+"/network-policies/"+args[1], p, &out)
	},
}

var netPoliciesDeleteCmd = &cobra.Command{
	Use:   "delete <group> <name>",
	Short: "delete a network policy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete("/groups/"+args[0]+"/network-policies/"+args[1], nil)
	},
}

var netPoliciesVerifyCmd = &cobra.Command{
	Use:   "verify -f policy.yaml",
	Short: "validate a policy file without persisting it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicyFile("", "")
		if err != nil {
			return err
		}
		var out json.RawMessage
		if err := client().Post("/network-policies/verify", p, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func printPolicy(p netpolicy.Policy) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

func init() {
	for _, c := range []*cobra.Command{netPoliciesCreateCmd, netPoliciesUpdateCmd, netPoliciesVerifyCmd} {
		c.Flags().StringVarP(&netPolicyFile, "file", "f", "", "YAML file describing the policy")
	}
	netPoliciesCmd.AddCommand(
		netPoliciesGetCmd,
		netPoliciesDefaultCmd,
		netPoliciesDescribeCmd,
		netPoliciesCreateCmd,
		netPoliciesUpdateCmd,
		netPoliciesDeleteCmd,
		netPoliciesVerifyCmd,
	)
	rootCmd.AddCommand(netPoliciesCmd)
}
