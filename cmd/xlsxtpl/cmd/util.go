package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sail-sail/xlsx-handlebars/internal/xlutil"
)

var colnameCmd = &cobra.Command{
	Use:   "colname <current> <offset>",
	Short: "Shift a column letter (or 1-based index) by offset and print the result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		offset, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("offset must be an integer: %w", err)
		}
		name, err := xlutil.ColumnName(args[0], offset)
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil
	},
}

var colindexCmd = &cobra.Command{
	Use:   "colindex <name>",
	Short: "Print a column letter's 1-based index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		idx, err := xlutil.ColumnIndex(args[0])
		if err != nil {
			return err
		}
		fmt.Println(idx)
		return nil
	},
}

var dimsCmd = &cobra.Command{
	Use:   "dims <image>",
	Short: "Sniff an image file's format and pixel dimensions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		ext, _, ok := xlutil.SniffFormat(data)
		if !ok {
			return fmt.Errorf("%s: unrecognized image format", args[0])
		}
		dims, ok := xlutil.ImageDimensions(data)
		if !ok {
			return fmt.Errorf("%s: recognized as %s but dimensions could not be decoded", args[0], ext)
		}
		fmt.Printf("%s %dx%d\n", ext, dims.Width, dims.Height)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(colnameCmd, colindexCmd, dimsCmd)
}
