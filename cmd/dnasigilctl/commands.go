package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dnasigil/internal/evo"
	"dnasigil/internal/healing"
	"dnasigil/internal/interaction"
	"dnasigil/internal/model"
	"dnasigil/internal/stats"
	"dnasigil/pkg/dnasigil"
)

const exportsDir = "exports"

func newEncodeCommand(opts *rootOptions) *cobra.Command {
	var statePath string
	cmd := &cobra.Command{
		Use:   "encode <entity.yaml|->",
		Short: "Encode a source entity into a genome and signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entity model.SourceEntity
			if err := readInput(args[0], cmd.InOrStdin(), &entity); err != nil {
				return err
			}
			var params dnasigil.EncodeParams
			if statePath != "" {
				var state model.ConsciousnessState
				if err := readInput(statePath, cmd.InOrStdin(), &state); err != nil {
					return err
				}
				params.State = &state
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				encoded, err := s.client.Encode(ctx, entity, params)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), encoded)
			})
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "consciousness state file overriding the entity's own")
	return cmd
}

func newEvolveCommand(opts *rootOptions) *cobra.Command {
	var (
		pressuresPath string
		generations   int
	)
	cmd := &cobra.Command{
		Use:   "evolve <encoded-id>",
		Short: "Run evolution generations under environmental pressures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if generations < 1 {
				return fmt.Errorf("--generations must be at least 1")
			}
			var pressures evo.Pressures
			if err := readInput(pressuresPath, cmd.InOrStdin(), &pressures); err != nil {
				return err
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				var res dnasigil.EvolveResult
				for i := 0; i < generations; i++ {
					var err error
					res, err = s.client.Evolve(ctx, args[0], pressures)
					if err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&pressuresPath, "pressures", "", "pressures file; omitted groups use defaults")
	cmd.Flags().IntVar(&generations, "generations", 1, "number of generations to run")
	return cmd
}

func newHealCommand(opts *rootOptions) *cobra.Command {
	var (
		damagePath string
		ambient    bool
	)
	cmd := &cobra.Command{
		Use:   "heal <encoded-id>",
		Short: "Assess damage and repair an encoded entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params healing.DamageParams
			if err := readInput(damagePath, cmd.InOrStdin(), &params); err != nil {
				return err
			}
			if ambient {
				params.Ambient = true
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				res, err := s.client.Heal(ctx, args[0], params)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&damagePath, "damage", "", "damage report file")
	cmd.Flags().BoolVar(&ambient, "ambient", false, "add random background damage")
	return cmd
}

func newInteractCommand(opts *rootOptions) *cobra.Command {
	var params interaction.Params
	cmd := &cobra.Command{
		Use:   "interact <encoded-id-a> <encoded-id-b>",
		Short: "Score the interaction between two encoded entities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				res, err := s.client.Interact(ctx, args[0], args[1], params)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&params.Context, "context", "", "free-form interaction context")
	cmd.Flags().Float64Var(&params.Intensity, "intensity", 0, "sequence-exchange intensity in [0,1] (0 means 1)")
	return cmd
}

type historyLine struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Summary string    `json:"summary"`
	At      time.Time `json:"at"`
	Age     string    `json:"age"`
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "history <encoded-id>",
		Short: "List evolution, healing or interaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				lines, err := historyLines(ctx, s.client, args[0], kind, time.Now())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lines)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "all", "evolution|healing|interaction|all")
	return cmd
}

func historyLines(ctx context.Context, c *dnasigil.Client, id, kind string, now time.Time) ([]historyLine, error) {
	lines := []historyLine{}
	add := func(eventID, k, summary string, at time.Time) {
		lines = append(lines, historyLine{ID: eventID, Kind: k, Summary: summary, At: at, Age: humanize.RelTime(at, now, "ago", "from now")})
	}

	switch kind {
	case "all", "evolution", "healing", "interaction":
	default:
		return nil, fmt.Errorf("unknown history kind %q", kind)
	}

	if kind == "all" || kind == "evolution" {
		events, err := c.EvolutionaryHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			add(e.ID, "evolution", fmt.Sprintf("generation %d, %d mutations, fitness %+.4f", e.Generation, e.Diff.MutationCount, e.FitnessImprovement), e.Timestamp)
		}
	}
	if kind == "all" || kind == "healing" {
		events, err := c.HealingHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			add(e.ID, "healing", fmt.Sprintf("heal %d, priority %s, effectiveness %.3f", e.HealCount, e.Assessment.HealingPriority, e.Result.OverallEffectiveness), e.Timestamp)
		}
	}
	if kind == "all" || kind == "interaction" {
		events, err := c.InteractionHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			add(e.ID, "interaction", fmt.Sprintf("with %s, %s at strength %.3f", e.PartnerID, e.Result.Type, e.Result.Strength), e.Timestamp)
		}
	}
	return lines, nil
}

func newMetricsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Aggregate encoding metrics over every stored entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.client.Warm(ctx); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s.client.EncodingMetrics())
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		outDir string
		list   bool
	)
	cmd := &cobra.Command{
		Use:   "export [encoded-id]",
		Short: "Write an entity dossier, or list previous exports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				entries, err := stats.ListExportIndex(outDir)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(args) != 1 {
				return fmt.Errorf("export requires an encoded id unless --list is set")
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				dir, err := s.client.Export(ctx, args[0], outDir)
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(dir)
				if err != nil {
					abs = dir
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"entity_id": args[0], "dir": abs})
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", exportsDir, "export base directory")
	cmd.Flags().BoolVar(&list, "list", false, "list the export index instead of exporting")
	return cmd
}
