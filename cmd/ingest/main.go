// Command ingest 命令行导入与评分
//
// 用法：
//
//	ingest folder ./exports/2024-03-12
//	ingest file cc.xlsx --source CC
//	ingest score --date 2024-03-12 --out scorecards.xlsx
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cmpulse/internal/calculator"
	"cmpulse/internal/config"
	"cmpulse/internal/exporter"
	"cmpulse/internal/importer"
	"cmpulse/internal/model"
	"cmpulse/internal/store"
	"cmpulse/internal/util"
)

var (
	configPath string
	verbose    bool
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Mentor performance ingestion CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config.toml 路径（默认为可执行文件同目录）")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出 debug 日志")

	root.AddCommand(folderCmd())
	root.AddCommand(fileCmd())
	root.AddCommand(scoreCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.AppConfig
	store  *store.Store
	logger *zap.Logger
}

// run 加载配置、打开存储后执行 fn；Ctrl+C 取消导入
func run(fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		cfg *config.AppConfig
		err error
	)
	if configPath != "" {
		cfg, _, err = config.LoadFile(configPath)
	} else {
		cfg, _, err = config.LoadConfigWithInfo()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := util.NewLogger(verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := util.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, &env{cfg: cfg, store: st, logger: logger})
}

func (e *env) coordinator() *importer.Coordinator {
	return importer.NewCoordinator(e.store, e.logger, e.cfg.Ingest.ImporterOptions())
}

func folderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folder <dir>",
		Short: "Ingest every spreadsheet in a folder (source detected from headers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				report, err := e.coordinator().IngestFolder(ctx, args[0])
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
}

func fileCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "file <path>...",
		Short: "Ingest one or more spreadsheets as a single batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := model.SourceNone
			if source != "" {
				parsed, ok := model.ParseSourceType(source)
				if !ok {
					return fmt.Errorf("unknown source %q", source)
				}
				src = parsed
			}

			files := make([]importer.FileInput, 0, len(args))
			for _, p := range args {
				files = append(files, importer.FileInput{Name: filepath.Base(p), Path: p, Source: src})
			}
			return run(func(ctx context.Context, e *env) error {
				report, err := e.coordinator().Run(ctx, importer.RunOptions{Trigger: importer.TriggerCLI, Files: files})
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "来源类型 (CC, FIXED, UP, RE, ALL_LEADS, TEAMS)；为空时按表头识别")
	return cmd
}

func scoreCmd() *cobra.Command {
	var date, team, out string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Print or export the scoreboard of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := calculator.Query{TeamID: team}
			if date != "" {
				d, err := time.Parse(model.DateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
				q.PeriodDate = &d
			}

			return run(func(ctx context.Context, e *env) error {
				calc := calculator.NewCalculator(e.store)
				if out == "" {
					board, err := calc.Scoreboard(ctx, q)
					if err != nil {
						return err
					}
					return printScoreboard(cmd, board)
				}

				f, board, err := exporter.NewExporter(calc).Export(ctx, q, nil)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := f.SaveAs(out); err != nil {
					return fmt.Errorf("save %s: %w", out, err)
				}
				e.logger.Info("scorecards exported", zap.String("file", out), zap.Int("rows", len(board.Rows)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "周期日期 YYYY-MM-DD（默认最近一期）")
	cmd.Flags().StringVar(&team, "team", "", "团队 ID")
	cmd.Flags().StringVar(&out, "out", "", "导出 xlsx 路径；为空时输出到终端")
	return cmd
}

func printReport(cmd *cobra.Command, report *model.IngestionReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), report.Summary())
	return nil
}

func printScoreboard(cmd *cobra.Command, board *model.Scoreboard) error {
	w := cmd.OutOrStdout()
	if board.PeriodDate == "" {
		fmt.Fprintln(w, "no metric records")
		return nil
	}
	fmt.Fprintf(w, "period %s\n", board.PeriodDate)
	for _, r := range board.Rows {
		fmt.Fprintf(w, "%-20s %-24s %7.2f  %-7s %d/4\n",
			r.TeamName, r.DisplayName, r.Scorecard.WeightedScore, r.Scorecard.Status, r.Scorecard.TargetsHit)
	}
	fmt.Fprintf(w, "ABOVE %d  WARNING %d  BELOW %d\n",
		board.StatusCounts[model.StatusAbove], board.StatusCounts[model.StatusWarning], board.StatusCounts[model.StatusBelow])
	return nil
}
