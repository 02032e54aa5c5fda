package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/survey"
	"github.com/xiaot623/panelsim/internal/workbook"
	"github.com/xiaot623/panelsim/policy"
)

var (
	exportBrief  string
	exportReply  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a workbook from a brief and a saved model reply",
	Long: `Runs the offline half of the pipeline: the reply is parsed (falling back
to synthesized records when it is unusable), tabulated and exported.

The brief uses the POST /api/runs body format. Pass "-" as --reply to read
the reply from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), exportBrief, exportReply, exportOutput, cmd.InOrStdin())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportBrief, "brief", "", "path to the brief JSON")
	exportCmd.Flags().StringVar(&exportReply, "reply", "", "path to the saved model reply, or - for stdin")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "panel.xlsx", "workbook to write")
	_ = exportCmd.MarkFlagRequired("brief")
	_ = exportCmd.MarkFlagRequired("reply")
}

func runExport(ctx context.Context, briefPath, replyPath, outPath string, stdin io.Reader) error {
	req, err := readBrief(ctx, briefPath)
	if err != nil {
		return err
	}

	var reply []byte
	if replyPath == "-" {
		reply, err = io.ReadAll(stdin)
	} else {
		reply, err = os.ReadFile(replyPath)
	}
	if err != nil {
		return eris.Wrap(err, "failed to read reply")
	}

	parsed := survey.NewParser().Parse(string(reply), req.Questions, req.SampleSize)
	if parsed.Fallback {
		logger.Warn("reply unusable, exporting fallback records", zap.String("reason", parsed.Reason))
	}

	table := survey.Tabulate(parsed.Records)
	data, err := workbook.Build(table, req.ResearchType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write %s", outPath)
	}

	logger.Info("workbook exported",
		zap.String("path", outPath),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
		zap.Bool("fallback", parsed.Fallback))
	return nil
}

// readBrief loads a brief and applies the same defaults and admission
// policy as the API.
func readBrief(ctx context.Context, path string) (domain.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RunRequest{}, eris.Wrap(err, "failed to read brief")
	}
	var body domain.CreateRunRequest
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.RunRequest{}, eris.Wrapf(err, "failed to parse brief %s", path)
	}
	if v := body.NullViolations(); len(v) > 0 {
		return domain.RunRequest{}, &domain.ValidationError{Violations: v}
	}
	req := body.ToRunRequest(cfg.Runs.DefaultRespondents)

	engine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		return domain.RunRequest{}, err
	}
	if err := engine.AdmitRun(ctx, req, cfg.Runs.MaxRespondents); err != nil {
		return domain.RunRequest{}, err
	}
	return req, nil
}
