package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shopsim/shopsim/sim/trace"
	"github.com/shopsim/shopsim/sim/transcript"
)

var (
	showLines    bool   // replay: print every line, not just the summary
	linesLimit   int    // lines: number of rows to show
	linesSpeaker string // lines: speaker filter
)

// replayCmd summarizes a zstd JSONL trace written by run --trace-dir
var replayCmd = &cobra.Command{
	Use:   "replay <trace.jsonl.zst>",
	Short: "Summarize a recorded conversation trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		st, err := loadTrace(args[0])
		if err != nil {
			return err
		}
		if showLines {
			for _, c := range st.Conversations {
				fmt.Printf("[%05d] %s->%s: %s\n", c.Tick, c.Speaker, c.Listener, c.Line)
			}
		}
		printSummary(trace.Summarize(st))
		return nil
	},
}

// linesCmd queries a SQLite transcript written by run --transcript-db
var linesCmd = &cobra.Command{
	Use:   "lines <transcript.db>",
	Short: "Show recent lines and visit counts from a transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		store, err := transcript.OpenStore(args[0])
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logrus.Warnf("closing transcript: %v", err)
			}
		}()
		return printTranscript(cmd.Context(), store, linesSpeaker, linesLimit)
	},
}

// loadTrace rebuilds an in-memory trace from an exported file.
func loadTrace(path string) (*trace.SimulationTrace, error) {
	envs, err := trace.ReadEnvelopes(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAll})
	for _, e := range envs {
		switch {
		case e.Conversation != nil:
			st.RecordConversation(*e.Conversation)
		case e.Lifecycle != nil:
			st.RecordLifecycle(*e.Lifecycle)
		default:
			logrus.Debugf("skipping envelope of type %q", e.Type)
		}
	}
	return st, nil
}

func printTranscript(ctx context.Context, store *transcript.Store, speaker string, limit int) error {
	lines, err := store.LinesBy(ctx, speaker, limit)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Printf("[%05d] %s->%s (%s, %s): %s\n", l.Tick, l.Speaker, l.Listener, l.Topic, l.Source, l.Line)
	}
	sources, err := store.CountBySource(ctx)
	if err != nil {
		return err
	}
	fmt.Println("=== Lines by Source ===")
	printCounts(sources)
	visits, err := store.Visits(ctx)
	if err != nil {
		return err
	}
	fmt.Println("=== Checkouts by Customer ===")
	printCounts(visits)
	return nil
}

func printSummary(s *trace.TraceSummary) {
	fmt.Println("=== Trace Summary ===")
	fmt.Printf("Lines                : %d\n", s.TotalLines)
	fmt.Printf("Checkout Lines       : %d\n", s.ServeLines)
	fmt.Printf("Conversants          : %d\n", s.UniqueConversants)
	fmt.Printf("Store Entries        : %d\n", s.Entries)
	fmt.Printf("Checkouts            : %d\n", s.Checkouts)
	fmt.Println("Topics:")
	printCounts(s.TopicDistribution)
}

// printCounts prints a tally sorted by count, then name.
func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Printf("  %-19s: %d\n", k, counts[k])
	}
}

func init() {
	replayCmd.Flags().BoolVar(&showLines, "lines", false, "Print every recorded line before the summary")
	linesCmd.Flags().IntVar(&linesLimit, "limit", 20, "Number of recent lines to show (0 for all)")
	linesCmd.Flags().StringVar(&linesSpeaker, "speaker", "", "Only show lines spoken by this actor")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(linesCmd)
}
