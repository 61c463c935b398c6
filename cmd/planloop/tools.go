package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func toolsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the capability descriptors the agent plans with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepareRuntimeEnv(cmd.Context(), flags, envNeeds{tools: true})
			if err != nil {
				return err
			}
			defer env.Close()

			fmt.Fprintln(cmd.OutOrStdout(), env.Tools.DescribeJSON())
			return nil
		},
	}
}
