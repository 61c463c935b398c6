package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

var errRunFailed = errors.New("run ended in the error state")

func runCmd(flags *globalFlags) *cobra.Command {
	var checkModel bool
	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Run one request and print each step as it happens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := prepareRuntimeEnv(ctx, flags, envNeeds{brain: true, tools: true, journal: !flags.noJournal})
			if err != nil {
				return err
			}
			defer env.Close()

			if checkModel {
				if err := env.CheckModel(ctx); err != nil {
					return err
				}
			}

			agent, err := env.NewAgent(ctx, 0, nil)
			if err != nil {
				return err
			}

			final := printRun(ctx, cmd.OutOrStdout(), agent, strings.Join(args, " "))
			if final.CurrentState == engine.StateError {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkModel, "check-model", false, "verify the model is served before running")
	return cmd
}

// printRun streams the run to w and returns the final step.
func printRun(ctx context.Context, w io.Writer, agent *engine.Agent, request string) engine.StepResult {
	var final engine.StepResult
	for step := range agent.Run(ctx, request) {
		fmt.Fprintln(w, strings.Repeat("-", 20))
		fmt.Fprintln(w, step.String())
		if step.IsFinal {
			final = step
		}
	}
	fmt.Fprintf(w, "\n\n======== Agent final answer ========\n%s\n", final.FinalAnswer)
	return final
}
