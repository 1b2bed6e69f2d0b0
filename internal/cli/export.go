package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quizz-service/internal/app"
	"quizz-service/internal/config"
)

// NewExportCmd writes the per-person scores of a sending as CSV.
func NewExportCmd(configPath *string) *cobra.Command {
	var sending string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the scores of a sending as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *configPath, sending, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sending, "sending", "", "sending date token, e.g. 2024-01-31--14-00")
	_ = cmd.MarkFlagRequired("sending")
	return cmd
}

func runExport(ctx context.Context, configPath, token string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	return exportSending(ctx, app.NewQuizService(b.store, b.quizzes), token, out)
}

func exportSending(ctx context.Context, service *app.QuizService, token string, out io.Writer) error {
	stats, err := service.Statistics(ctx, token)
	if err != nil {
		return fmt.Errorf("export %s: %w", token, err)
	}
	return app.WriteCSV(out, stats)
}
