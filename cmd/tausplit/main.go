// Command tausplit simulates a stochastic chemical reaction network: it
// parses one or more reaction-network input files, runs the selected
// engine to a time horizon, and writes sampled trajectories as TSV.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormorni/tausplit"
	"github.com/ormorni/tausplit/output"
	"github.com/ormorni/tausplit/parse"
)

const (
	exitOK         = 0
	exitParseError = 1
	exitSimError   = 2
	exitUsageError = 3
)

// parseExitError and simExitError distinguish the parse- and
// simulation-failure exit codes from the generic usage-error code without
// threading an exit code value through cobra's plain error return.
type parseExitError struct{ err error }

func (e parseExitError) Error() string { return e.err.Error() }

type simExitError struct{ err error }

func (e simExitError) Error() string { return e.err.Error() }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		samples        int
		algorithmFlag  string
		seedFlag       uint64
		countReactions bool
		cpuTime        bool
		noPrintState   bool
	)

	root := &cobra.Command{
		Use:           "tausplit TIME INPUT_FILE [INPUT_FILE...]",
		Short:         "Simulate a stochastic chemical reaction network",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			horizon, err := strconv.ParseFloat(args[0], 64)
			if err != nil || horizon < 0 {
				return fmt.Errorf("usage: invalid TIME %q", args[0])
			}

			alg, err := tausplit.ParseAlgorithm(algorithmFlag)
			if err != nil {
				return fmt.Errorf("usage: %w", err)
			}

			seed := seedFlag
			if !cmd.Flags().Changed("seed") {
				seed, err = randomSeed()
				if err != nil {
					return fmt.Errorf("ioerror: drawing seed: %w", err)
				}
			}

			parsed, err := parseFiles(args[1:])
			if err != nil {
				return parseExitError{err}
			}

			start := time.Now()
			sim := &tausplit.Simulation{
				Net:       parsed.Net,
				Initial:   parsed.Initial,
				Algorithm: alg,
				Seed:      seed,
				Horizon:   horizon,
				Samples:   samples,
			}

			w := output.New(cmd.OutOrStdout(), parsed.Species, output.Config{
				CountReactions: countReactions,
				CPUTime:        cpuTime,
				Elapsed:        func() float64 { return time.Since(start).Seconds() },
				PrintState:     !noPrintState,
			})

			samplesOut, runErr := sim.Run(cmd.Context())
			if runErr != nil {
				return simExitError{runErr}
			}
			for _, s := range samplesOut {
				w.Sample(s.Time, s.State, s.Reactions)
			}
			if flushErr := w.Flush(); flushErr != nil {
				return fmt.Errorf("ioerror: %w", flushErr)
			}
			return nil
		},
	}

	root.Flags().IntVarP(&samples, "samples", "s", 1, "number of evenly spaced state samples to emit")
	root.Flags().StringVar(&algorithmFlag, "algorithm", "tau-split", "simulation algorithm: tau-split, tau-split6, or gillespie")
	root.Flags().Uint64Var(&seedFlag, "seed", 0, "RNG seed (default: drawn from OS entropy)")
	root.Flags().BoolVar(&countReactions, "count-reactions", false, "append a cumulative reaction-count column")
	root.Flags().BoolVar(&cpuTime, "cpu-time", false, "append a wall-clock elapsed-seconds column")
	root.Flags().BoolVar(&noPrintState, "no-print-state", false, "suppress per-species state columns")
	root.SetArgs(args)

	err := root.Execute()
	switch e := err.(type) {
	case nil:
		return exitOK
	case parseExitError:
		fmt.Fprintln(os.Stderr, e.err)
		return exitParseError
	case simExitError:
		fmt.Fprintln(os.Stderr, e.err)
		return exitSimError
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitUsageError
	}
}

// parseFiles opens every input file and parses them, in order, into a
// single *parse.Network — multiple files compose by concatenation.
func parseFiles(paths []string) (*parse.Network, error) {
	readers := make([]io.Reader, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", path, err)
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return parse.Parse(readers...)
}

func randomSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
