package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/slide-overlay/internal/cells"
	"github.com/ironsheep/slide-overlay/internal/config"
	"github.com/ironsheep/slide-overlay/internal/server"
	"github.com/ironsheep/slide-overlay/internal/store"
	"github.com/ironsheep/slide-overlay/internal/visualize"
	"github.com/ironsheep/slide-overlay/internal/wsi"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		slidePath    string
		cellsPath    string
		outputPath   string
		level        int
		name         string
		scale        float64
		writeCellCSV bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the overlay and mask for one slide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("level") {
				level = a.cfg.Level
			}
			if outputPath == "" {
				outputPath = a.cfg.OutputPath
			}

			opts, err := visualize.OptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("write-cell-csv") {
				opts.WriteCellCSV = writeCellCSV
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			result, err := renderSlide(config.SlideConfig{Name: name, Path: slidePath, Cells: cellsPath, Scale: scale},
				outputPath, level, opts, st)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&slidePath, "slide", "", "Slide directory of level_<n> images, or a single image file")
	cmd.Flags().StringVar(&cellsPath, "cells", "", "Detections file (.csv or .json) in level-0 coordinates")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output directory (default: configured outputPath)")
	cmd.Flags().IntVarP(&level, "level", "l", 0, "Resolution level to render (default: configured level)")
	cmd.Flags().StringVar(&name, "name", "", "Output file stem (default: slide base name)")
	cmd.Flags().Float64Var(&scale, "scale", 1.0, "Resize factor applied to the level image")
	cmd.Flags().BoolVar(&writeCellCSV, "write-cell-csv", false, "Also write cell_csvs/<name>.csv")
	_ = cmd.MarkFlagRequired("slide")
	_ = cmd.MarkFlagRequired("cells")

	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var workbook string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Render every slide listed in the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.Slides) == 0 {
				return errors.New("no slides configured; pass --config with a slides list")
			}
			if workbook == "" {
				workbook = a.cfg.SummaryWorkbook
			}

			opts, err := visualize.OptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			results := make([]*visualize.Result, 0, len(a.cfg.Slides))
			summaries := make([]cells.Summary, 0, len(a.cfg.Slides))
			for _, sc := range a.cfg.Slides {
				result, err := renderSlide(sc, a.cfg.OutputPath, a.cfg.Level, opts, st)
				if err != nil {
					return fmt.Errorf("slide %s: %w", sc.OutputName(), err)
				}
				results = append(results, result)
				summaries = append(summaries, result.Summary())
			}

			if workbook != "" {
				if err := cells.WriteWorkbook(workbook, summaries); err != nil {
					return err
				}
				log.Info().Str("path", workbook).Int("slides", len(summaries)).Msg("summary workbook written")
			}

			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "Summary .xlsx path (default: configured summaryWorkbook)")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			log.Info().
				Str("version", Version).
				Str("build_time", BuildTime).
				Str("commit", GitCommit).
				Bool("ledger", st != nil).
				Msg("starting MCP server")

			srv := server.New(a.cfg, st)
			if err := srv.Serve(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var slide string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List renders recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("no render ledger configured; pass --db or set database in the config")
			}
			defer st.Close()

			var renders []store.Render
			if slide != "" {
				renders, err = st.RendersForSlide(slide)
			} else {
				renders, err = st.ListRenders()
			}
			if err != nil {
				return err
			}
			if renders == nil {
				renders = []store.Render{}
			}
			return writeJSON(cmd.OutOrStdout(), renders)
		},
	}

	cmd.Flags().StringVar(&slide, "slide", "", "Only list renders of this slide")
	return cmd
}

// renderSlide opens one slide, renders it and records the result when st is non-nil.
func renderSlide(sc config.SlideConfig, outputPath string, level int, opts visualize.Options, st store.Store) (*visualize.Result, error) {
	detections, err := cells.Load(sc.Cells)
	if err != nil {
		return nil, err
	}

	slide, err := wsi.Open(sc.Path, wsi.Options{Name: sc.Name, Scale: sc.Scale})
	if err != nil {
		return nil, err
	}
	if r, ok := slide.(wsi.Releaser); ok {
		defer r.Release()
	}

	result, err := visualize.VisualizePrediction(slide, detections, outputPath, level, opts)
	if err != nil {
		return nil, err
	}

	if st != nil {
		if _, err := st.RecordRender(result.Ledger()); err != nil {
			return nil, fmt.Errorf("failed to record render: %w", err)
		}
	}
	return result, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
