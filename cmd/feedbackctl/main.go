package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"studyfeedback/adapters/excel"
	"studyfeedback/adapters/postgres"
	"studyfeedback/domain/result"
	"studyfeedback/internal"
	"studyfeedback/internal/config"
	"studyfeedback/internal/feedback/render"
	"studyfeedback/internal/feedback/validate"
	"studyfeedback/ports"
)

// errInvalidTemplate makes validate exit non-zero without an extra message
var errInvalidTemplate = fmt.Errorf("template is invalid")

func main() {
	config.LoadDotEnv()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if err != errInvalidTemplate {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "feedbackctl",
		Short:         "Render and check participant feedback templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRenderCmd(),
		newValidateCmd(),
		newImportCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func newRenderCmd() *cobra.Command {
	var templatePath, resultPath, allPath string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template against one participant result",
		Long: `Render a feedback template to markdown.

Results are read from JSON or YAML. --all supplies the study-wide results used by
across-scope statistics; without it the participant's result is the whole study.

Example: feedbackctl render --template feedback.md --result p1.json --all study.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := os.ReadFile(templatePath)
			if err != nil {
				return err
			}
			res, err := loadResult(resultPath)
			if err != nil {
				return err
			}
			all := []*result.EnrichedResult{res}
			if allPath != "" {
				if all, err = loadResults(allPath); err != nil {
					return err
				}
			}

			out := render.New(internal.NewDefaultLogger()).Render(string(tmpl), render.Context{Result: res, All: all})
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "Template file")
	cmd.Flags().StringVar(&resultPath, "result", "", "Participant result (JSON or YAML)")
	cmd.Flags().StringVar(&allPath, "all", "", "All study results for across-scope statistics (JSON or YAML list)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var templatePath, resultPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a template against a sample result; exits 1 when invalid",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := os.ReadFile(templatePath)
			if err != nil {
				return err
			}
			var sample *result.EnrichedResult
			if resultPath != "" {
				if sample, err = loadResult(resultPath); err != nil {
					return err
				}
			}

			report := validate.Validate(string(tmpl), sample)
			if err := writeReport(cmd.OutOrStdout(), report, asJSON); err != nil {
				return err
			}
			if !report.IsValid {
				return errInvalidTemplate
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "Template file")
	cmd.Flags().StringVar(&resultPath, "result", "", "Sample participant result (JSON or YAML)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func writeReport(w io.Writer, report validate.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, d := range report.Errors {
		if _, err := fmt.Fprintf(w, "%d-%d\t%s\t%s\t%s\n", d.Start, d.End, d.Severity, d.Kind, d.Message); err != nil {
			return err
		}
	}
	status := "valid"
	if !report.IsValid {
		status = "invalid"
	}
	_, err := fmt.Fprintf(w, "%s (%d diagnostics)\n", status, len(report.Errors))
	return err
}

func newImportCmd() *cobra.Command {
	var workbook, studyID, participantColumn, component, format string
	var store bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert a trial workbook (xlsx or csv) into participant results",
		Long: `Read the first sheet of a workbook and group its rows into one result per
participant. Results are printed, or saved to the configured database with --store.

Example: feedbackctl import --workbook stroop.xlsx --study stroop --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := excel.NewDataReader(workbook, internal.NewDefaultLogger())
			results, err := reader.Import(excel.ImportOptions{
				StudyID:           studyID,
				ParticipantColumn: participantColumn,
				ComponentName:     component,
			})
			if err != nil {
				return err
			}

			if store {
				return storeResults(cmd.Context(), results, cmd.OutOrStdout())
			}
			data, err := encodeResults(results, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "Workbook file (.xlsx or .csv)")
	cmd.Flags().StringVar(&studyID, "study", "", "Study ID stamped on every result")
	cmd.Flags().StringVar(&participantColumn, "participant-column", "", "Column holding participant IDs (auto-detected when empty)")
	cmd.Flags().StringVar(&component, "component", "trials", "Component name for the imported trials")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|yaml")
	cmd.Flags().BoolVar(&store, "store", false, "Save results to DATABASE_URL instead of printing them")
	_ = cmd.MarkFlagRequired("workbook")
	return cmd
}

func storeResults(ctx context.Context, results []*result.EnrichedResult, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	var repo ports.ResultRepository = postgres.NewResultRepository(db)
	for _, r := range results {
		if err := repo.Save(ctx, r); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "stored %d results\n", len(results))
	return err
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the feedback tables in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := postgres.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.Database.Driver)
			return err
		},
	}
}
