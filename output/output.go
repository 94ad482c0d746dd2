// Package output writes sampled simulation trajectories as TSV: a header
// row naming the time column, one column per species in declaration
// order, and optional reaction-count and CPU-time columns, followed by
// one row per emitted sample.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Writer accumulates sample rows and emits them as TSV on Flush. It
// implements [engine.Sampler] so a [engine.Harness] can write directly to
// it.
type Writer struct {
	w             *csv.Writer
	species       []string
	countReaction bool
	cpuTime       bool
	printState    bool
	elapsed       func() float64
	wroteHeader   bool
	err           error
}

// Config selects which optional columns [Writer] appends, matching the
// CLI's output flags.
type Config struct {
	// CountReactions appends a "reactions" column with the cumulative
	// reaction count at each sample (--count-reactions).
	CountReactions bool
	// CPUTime appends a "cpu_time" column with wall-clock elapsed seconds
	// since the writer was created (--cpu-time). Elapsed is the clock
	// source; callers pass time.Since bound to a start time so output
	// tests can substitute a deterministic clock.
	CPUTime bool
	Elapsed func() float64
	// PrintState suppresses per-species state columns when false
	// (--no-print-state), useful in combination with CountReactions.
	PrintState bool
}

// New returns a Writer over w, writing tab-separated rows, with one column
// per name in species (declaration order).
func New(w io.Writer, species []string, cfg Config) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &Writer{
		w:             cw,
		species:       species,
		countReaction: cfg.CountReactions,
		cpuTime:       cfg.CPUTime,
		printState:    cfg.PrintState,
		elapsed:       cfg.Elapsed,
	}
}

// Sample implements [engine.Sampler]: it buffers one TSV row for the given
// sample. Errors are deferred to [Writer.Flush] to keep the Sampler
// interface free of error returns, matching the column-writer style of
// stdlib's [csv.Writer] itself (Write buffers; Flush surfaces the error).
func (w *Writer) Sample(t float64, x []uint64, reactions uint64) {
	if w.err != nil {
		return
	}
	if !w.wroteHeader {
		w.err = w.writeHeader()
		w.wroteHeader = true
		if w.err != nil {
			return
		}
	}

	row := make([]string, 0, 1+len(w.species)+2)
	row = append(row, formatFloat(t))
	if w.printState {
		for _, v := range x {
			row = append(row, fmt.Sprintf("%d", v))
		}
	}
	if w.countReaction {
		row = append(row, fmt.Sprintf("%d", reactions))
	}
	if w.cpuTime {
		elapsed := 0.0
		if w.elapsed != nil {
			elapsed = w.elapsed()
		}
		row = append(row, formatFloat(elapsed))
	}

	if err := w.w.Write(row); err != nil {
		w.err = fmt.Errorf("output: writing sample row: %w", err)
	}
}

// writeHeader writes the column-name row: "time", then each species name,
// then "reactions" and/or "cpu_time" if enabled.
func (w *Writer) writeHeader() error {
	header := make([]string, 0, 1+len(w.species)+2)
	header = append(header, "time")
	if w.printState {
		header = append(header, w.species...)
	}
	if w.countReaction {
		header = append(header, "reactions")
	}
	if w.cpuTime {
		header = append(header, "cpu_time")
	}
	if err := w.w.Write(header); err != nil {
		return fmt.Errorf("output: writing header: %w", err)
	}
	return nil
}

// Flush writes any buffered rows to the underlying writer and returns the
// first error encountered by [Writer.Sample] or the flush itself.
func (w *Writer) Flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil && w.err == nil {
		w.err = fmt.Errorf("output: flush: %w", err)
	}
	return w.err
}

// formatFloat renders a float64 without trailing zeros, matching how a
// TSV consumer (spreadsheet, pandas) expects a numeric column to look.
func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
