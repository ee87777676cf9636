// Arena analyze CLI: turns an exported judgments JSON dump into per-pair,
// stratified head-to-head results as CSV.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/auralab/song-arena/internal/export"
	"github.com/auralab/song-arena/internal/stats"
)

type cliConfig struct {
	Input           string
	Output          string
	Mode            string
	Pair            string
	SystemOrder     string
	IncludePractice bool
}

func parseFlags() cliConfig {
	cfg := cliConfig{}

	flag.StringVar(&cfg.Input, "input", "", "Exported judgments JSON file (required)")
	flag.StringVar(&cfg.Output, "output", "", "Output CSV path (default: stdout)")
	flag.StringVar(&cfg.Mode, "mode", "plain", "Vote mode: plain or weighted")
	flag.StringVar(&cfg.Pair, "pair", "", "Restrict to one pair ID")
	flag.StringVar(&cfg.SystemOrder, "system-order", "", "Report systems in this order, e.g. sysB,sysA (default: alphabetical)")
	flag.BoolVar(&cfg.IncludePractice, "include-practice", false, "Keep practice-task judgments")

	flag.Parse()
	return cfg
}

func (c cliConfig) systemOrder() ([]string, error) {
	if c.SystemOrder == "" {
		return nil, nil
	}
	order := strings.Split(c.SystemOrder, ",")
	for i := range order {
		order[i] = strings.TrimSpace(order[i])
	}
	if len(order) != 2 || order[0] == "" || order[1] == "" || order[0] == order[1] {
		return nil, fmt.Errorf("-system-order must name exactly 2 distinct systems, got %q", c.SystemOrder)
	}
	return order, nil
}

func main() {
	cfg := parseFlags()

	if cfg.Input == "" {
		slog.Error("No input file: pass -input")
		os.Exit(1)
	}

	var mode stats.VoteMode
	switch cfg.Mode {
	case "plain":
		mode = stats.VotePlain
	case "weighted":
		mode = stats.VoteWeighted
	default:
		slog.Error("Unknown mode, must be plain or weighted", "mode", cfg.Mode)
		os.Exit(1)
	}

	order, err := cfg.systemOrder()
	if err != nil {
		slog.Error("Invalid system order", "error", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		slog.Error("Failed to read input", "error", err)
		os.Exit(1)
	}
	var records []export.JudgmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Error("Failed to parse judgments JSON", "error", err)
		os.Exit(1)
	}

	byPair := map[string][]stats.Judgment{}
	for _, rec := range records {
		if rec.IsPractice && !cfg.IncludePractice {
			continue
		}
		if cfg.Pair != "" && rec.PairID != cfg.Pair {
			continue
		}
		byPair[rec.PairID] = append(byPair[rec.PairID], stats.Judgment{
			JudgmentID:    rec.JudgmentID,
			TaskID:        rec.TaskID,
			QueryID:       rec.QueryID,
			PairID:        rec.PairID,
			TaskType:      rec.TaskType,
			Genres:        rec.Genres,
			LeftSystemID:  rec.LeftSystemID,
			RightSystemID: rec.RightSystemID,
			Choice:        rec.Choice,
			Confidence:    rec.Confidence,
		})
	}
	if len(byPair) == 0 {
		slog.Error("No judgments matched")
		os.Exit(1)
	}

	out := io.Writer(os.Stdout)
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			slog.Error("Failed to create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := writeResults(out, byPair, mode, order); err != nil {
		slog.Error("Failed to write results", "error", err)
		os.Exit(1)
	}
}

func writeResults(out io.Writer, byPair map[string][]stats.Judgment, mode stats.VoteMode, order []string) error {
	pairIDs := make([]string, 0, len(byPair))
	for id := range byPair {
		pairIDs = append(pairIDs, id)
	}
	sort.Strings(pairIDs)

	w := csv.NewWriter(out)
	header := []string{
		"pair_id", "stratum", "system_a", "system_b",
		"tasks", "judgments", "a_wins", "b_wins", "ties",
		"win_rate_a", "ci_low", "ci_high", "p_value",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, pairID := range pairIDs {
		rows, err := stats.Stratify(byPair[pairID], mode, order)
		if err != nil {
			return fmt.Errorf("pair %s: %w", pairID, err)
		}
		for _, r := range rows {
			record := []string{
				pairID, r.Stratum, r.SystemA, r.SystemB,
				strconv.Itoa(r.Tasks), strconv.Itoa(r.Judgments),
				strconv.Itoa(r.AWins), strconv.Itoa(r.BWins), strconv.Itoa(r.Ties),
				formatFloat(r.WinRateA), formatFloat(r.CILow), formatFloat(r.CIHigh), formatFloat(r.PValue),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
