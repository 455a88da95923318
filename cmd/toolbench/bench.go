package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/toolbench/bench"
	"github.com/tailored-agentic-units/toolbench/observability"
)

var (
	benchInput   string
	benchOutput  string
	benchSystem  string
	benchOracle  bool
	benchRepeat  int
	benchStagger time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run every query variation of an input file",
	Long: `Render each variation of the input file's query template for the chosen
system, run it --repeat times with starts staggered by --stagger, and write
<variation>_run_<n>.{result,history,api,time} under
<output>/<system>/<oracle|retrieval>.

Runs that already have a .result file are skipped, so an interrupted bench
resumes where it stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchInput == "" {
			return fmt.Errorf("--input is required")
		}
		system, err := bench.ParseSystem(benchSystem)
		if err != nil {
			return err
		}

		input, err := bench.LoadInput(benchInput)
		if err != nil {
			return err
		}

		k, closeKernel, err := openKernel()
		if err != nil {
			return err
		}
		defer closeKernel()

		opts := bench.Options{
			System:    system,
			Oracle:    benchOracle,
			Repeat:    benchRepeat,
			Stagger:   benchStagger,
			OutputDir: benchOutput,
		}
		b, err := bench.New(k, input, opts, observability.NewSlogObserver(nil))
		if err != nil {
			return err
		}

		summary, runErr := b.Run(cmd.Context())
		if summary != nil {
			printSummary(cmd, b.Dir(), summary)
		}
		return runErr
	},
}

func printSummary(cmd *cobra.Command, dir string, s *bench.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("Bench: "+dir))

	w := newTable(out)
	fmt.Fprintln(w, "RUN\tROUNDS\tELAPSED\tSTATUS")
	for _, r := range s.Runs {
		if r.Key == "" {
			continue
		}
		status := okStyle.Render("ok")
		switch {
		case r.Failed:
			status = failStyle.Render("failed")
		case r.BestEffort:
			status = warnStyle.Render("best effort")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", titleStyle.Render(r.Key), r.Rounds, r.Elapsed.Round(time.Millisecond), status)
	}
	w.Flush()

	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf(
		"%d planned, %d skipped, %d completed, %d failed",
		s.Planned, s.Skipped, s.Completed, s.Failed,
	)))
}

func init() {
	defaults := bench.DefaultOptions()
	benchCmd.Flags().StringVarP(&benchInput, "input", "i", "", "Path to the YAML input file (required)")
	benchCmd.Flags().StringVarP(&benchOutput, "output", "o", defaults.OutputDir, "Base output directory")
	benchCmd.Flags().StringVarP(&benchSystem, "system", "s", string(defaults.System), "System: promptql, tool_calling, or tool_calling_python")
	benchCmd.Flags().BoolVar(&benchOracle, "oracle", false, "Use the oracle prompt and attach the variation's oracle data")
	benchCmd.Flags().IntVarP(&benchRepeat, "repeat", "r", defaults.Repeat, "Runs per variation")
	benchCmd.Flags().DurationVar(&benchStagger, "stagger", defaults.Stagger, "Delay between consecutive run starts")
	rootCmd.AddCommand(benchCmd)
}
