package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/toolbench/extract"
)

var (
	runPrompt string
	runTag    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a single prompt",
	Long: `Send one prompt through the tool-calling loop and print the final answer.

With --tag, only the content of the named XML-style tag in the answer is
printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runPrompt == "" {
			return fmt.Errorf("--prompt is required")
		}

		k, closeKernel, err := openKernel()
		if err != nil {
			return err
		}
		defer closeKernel()

		result, err := k.Run(cmd.Context(), runPrompt)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		answer := result.Text
		if runTag != "" && !result.Failed {
			text, ok := extract.Tag(result.Text, runTag)
			if !ok {
				return fmt.Errorf("answer has no <%s> tag", runTag)
			}
			answer = text
		}
		fmt.Fprintln(out, answer)

		status := okStyle.Render("ok")
		switch {
		case result.Failed:
			status = failStyle.Render("failed")
		case result.BestEffort:
			status = warnStyle.Render("best effort")
		}
		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf(
			"session %s: %d rounds (%d with tools), %d tokens,",
			result.SessionID, result.Rounds, result.ToolRounds, result.Usage.TotalTokens,
		)), status)

		if result.Failed {
			return fmt.Errorf("run failed")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "Prompt to answer (required)")
	runCmd.Flags().StringVar(&runTag, "tag", "", "Print only the content of this tag from the answer")
	rootCmd.AddCommand(runCmd)
}
