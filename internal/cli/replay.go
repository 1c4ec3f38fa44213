package cli

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/walletcore/internal/journal"
	"github.com/roach88/walletcore/internal/state"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// TypeCount is one row of the per-type action count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ReplayResult is the replay command's output.
type ReplayResult struct {
	Actions       int                          `json:"actions"`
	LastSeq       int64                        `json:"last_seq"`
	Checkpoints   int                          `json:"checkpoints"`
	SnapshotHash  string                       `json:"snapshot_hash"`
	Deterministic bool                         `json:"deterministic"`
	Mismatches    []journal.CheckpointMismatch `json:"mismatches,omitempty"`
	Types         []TypeCount                  `json:"types"`
	FormatVersion string                       `json:"format_version"`
	CoreVersion   string                       `json:"core_version"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an action journal and verify determinism",
		Long: `Replay an action journal and verify determinism.

Every journaled action is reduced from an empty snapshot, twice. The two
final hashes must agree, and every checkpoint recorded while the journal was
written must match the replayed snapshot at that sequence number.

Exit codes:
  0 - Replay is deterministic
  1 - Replay disagreed with itself or a checkpoint
  2 - Command error (database not found, etc.)

Examples:
  walletcore replay --db ./walletcore.db
  walletcore replay --db ./walletcore.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer j.Close()

	formatVersion, coreVersion, err := j.Versions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal versions", err)
	}

	res, err := j.Replay(ctx, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay journal", err)
	}
	checkpoints, err := j.ReadCheckpoints(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoints", err)
	}
	counts, err := j.CountByType(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count actions", err)
	}

	result := ReplayResult{
		Actions:       res.Actions,
		LastSeq:       res.LastSeq,
		Checkpoints:   len(checkpoints),
		SnapshotHash:  res.Hash,
		Deterministic: true,
		Types:         sortedCounts(counts),
		FormatVersion: formatVersion,
		CoreVersion:   coreVersion,
	}

	_, verr := j.VerifyDeterminism(ctx, nil)
	var de *journal.DeterminismError
	switch {
	case verr == nil:
	case errors.As(verr, &de):
		result.Deterministic = false
		result.Mismatches = de.Mismatches
	default:
		return WrapExitError(ExitCommandError, "failed to verify journal", verr)
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(cmd, result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result, opts.Verbose)
	}

	if !result.Deterministic {
		return WrapExitError(ExitFailure, "replay is not deterministic", verr)
	}
	return nil
}

func sortedCounts(counts map[state.ActionType]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: string(t), Count: n})
	}
	slices.SortFunc(out, func(a, b TypeCount) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.Deterministic {
		resp = CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeReplay,
				Message: "replay is not deterministic",
				Details: result.Mismatches,
			},
		}
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) {
	w := cmd.OutOrStdout()

	if result.Actions == 0 {
		fmt.Fprintln(w, "No actions found in journal.")
		return
	}

	mark := "✓"
	if !result.Deterministic {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %d actions, %d checkpoints (last seq %d)\n",
		mark, result.Actions, result.Checkpoints, result.LastSeq)
	fmt.Fprintf(w, "  snapshot: %s\n", result.SnapshotHash)
	fmt.Fprintf(w, "  written by walletcore %s (format %s)\n", result.CoreVersion, result.FormatVersion)

	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  checkpoint %d: recorded %s, replayed %s\n", m.Seq, m.Recorded, m.Replayed)
	}

	if verbose {
		for _, tc := range result.Types {
			fmt.Fprintf(w, "  %-30s %d\n", tc.Type, tc.Count)
		}
	}

	if result.Deterministic {
		fmt.Fprintln(w, "Replay is deterministic.")
	} else {
		fmt.Fprintln(w, "Replay is NOT deterministic.")
	}
}
