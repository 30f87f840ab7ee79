package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	xlsxtpl "github.com/sail-sail/xlsx-handlebars"
)

var (
	renderOutput        string
	renderDeterministic bool
)

var renderCmd = &cobra.Command{
	Use:   "render <template.xlsx> <data.json>",
	Short: "Render an XLSX template against a JSON data document",
	Long: `Render evaluates every Handlebars expression in template.xlsx against
data.json and writes the resulting workbook.

Examples:
  xlsxtpl render report.xlsx data.json -o out.xlsx
  xlsxtpl render report.xlsx data.json -o out.xlsx --deterministic`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output file path (required)")
	renderCmd.Flags().BoolVar(&renderDeterministic, "deterministic", false, "use sequential relationship ids instead of random UUIDs, for reproducible output")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	templatePath, dataPath := args[0], args[1]

	if renderOutput == "" {
		return fmt.Errorf("--output is required")
	}

	templateBytes, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", templatePath, err)
	}
	dataBytes, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dataPath, err)
	}

	out, warnings, err := xlsxtpl.Render(templateBytes, dataBytes, xlsxtpl.RenderOptions{
		Deterministic: renderDeterministic,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return &ExitError{Code: exitCodeFor(err)}
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning: "+w.String())
	}

	if dir := filepath.Dir(renderOutput); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(renderOutput, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", renderOutput, err)
	}

	fmt.Println(renderOutput)
	return nil
}

// exitCodeFor maps a render failure to spec §6's exit-condition table:
// code 1 for a template/input that never should have been accepted,
// code 2 for a failure discovered while actually rendering it.
func exitCodeFor(err error) int {
	var xerr *xlsxtpl.Error
	if !errors.As(err, &xerr) {
		return 2
	}
	switch xerr.Kind {
	case xlsxtpl.KindInvalidZip, xlsxtpl.KindInvalidXLSX, xlsxtpl.KindTemplateParse, xlsxtpl.KindDataParse:
		return 1
	default:
		return 2
	}
}
