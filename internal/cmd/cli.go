package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/lensesio/tableprinter"
)

// CLI exposes common dependencies to commands.
type CLI struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Output a string to CLI.Stdout. Output is like fmt.Printf except that it always
// adds a trailing newline.
// To write output without a trailing newline use CLI.Stdout directly.
func (c *CLI) Output(format string, args ...interface{}) {
	fmt.Fprintf(c.Stdout, format+"\n", args...)
}

// Table prints rows, a slice of structs with `header` tags, as a borderless
// table.
func (c *CLI) Table(rows interface{}) {
	table := tableprinter.New(c.Stdout)
	table.HeaderAlignment = tableprinter.AlignLeft
	table.AutoWrapText = false
	table.DefaultAlignment = tableprinter.AlignLeft
	table.CenterSeparator = ""
	table.ColumnSeparator = ""
	table.RowSeparator = ""
	table.HeaderLine = false
	table.BorderBottom = false
	table.BorderLeft = false
	table.BorderRight = false
	table.BorderTop = false
	table.Print(rows)
}

// surveyIO sends survey prompts to the CLI streams. The streams must be
// files, or wrap one.
func (c *CLI) surveyIO(options *survey.AskOptions) error {
	stdin, ok := c.Stdin.(terminal.FileReader)
	if !ok {
		return fmt.Errorf("stdin is not a terminal")
	}
	stdout, ok := c.Stdout.(terminal.FileWriter)
	if !ok {
		return fmt.Errorf("stdout is not a terminal")
	}
	options.Stdio = terminal.Stdio{In: stdin, Out: stdout, Err: c.Stderr}
	return nil
}

// key is a type to ensure no other package can access the CLI value in context.
type key struct{}

// ctxKey used to store CLI in the context.
var ctxKey = key{}

// newCLI looks for a CLI stored in context. If one exists, the CLI from
// context is returned, otherwise a new CLI is created with streams set to the
// standard input and output streams.
//
// newCLI is a shim for testing, allowing tests to use a buffer instead of the
// standard streams.
func newCLI(ctx context.Context) *CLI {
	cli, ok := ctx.Value(ctxKey).(*CLI)
	if ok {
		return cli
	}

	return &CLI{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
