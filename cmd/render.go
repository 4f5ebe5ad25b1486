package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/project"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

type renderedSnapshot struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Connection string `json:"connection"`
	Table      string `json:"table"`
	Strategy   string `json:"strategy"`
	Query      string `json:"query"`
}

func Render() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render the source queries of the snapshots in a project without connecting to the warehouse",
		ArgsUsage: "[path to the project]",
		Flags:     append(workspaceFlags(), outputFlag),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String("output")
			ws, err := loadWorkspace(fs, workspaceOptionsFromContext(c))
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}

			rendered, err := renderSnapshots(ws.snapshots, ws)
			if err != nil {
				printError(err, output, "Failed to render the snapshots")
				return cli.Exit("", 1)
			}

			if output == "json" {
				js, err := json.Marshal(rendered)
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(js))
				return nil
			}

			printRendered(os.Stdout, rendered)
			return nil
		},
	}
}

func renderSnapshots(definitions []*project.Definition, ws *workspace) ([]renderedSnapshot, error) {
	rendered := make([]renderedSnapshot, 0, len(definitions))
	for _, def := range definitions {
		q, err := def.RenderSource(ws.startedAt)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, renderedSnapshot{
			Name:       def.Name,
			Path:       def.Path,
			Connection: def.Connection,
			Table:      snapshot.Relation{Schema: def.Config.TargetSchema, Table: def.Config.Table()}.String(),
			Strategy:   string(def.Config.Strategy),
			Query:      q,
		})
	}

	return rendered, nil
}

func printRendered(w io.Writer, rendered []renderedSnapshot) {
	for _, r := range rendered {
		tree := treeprint.NewWithRoot(color.New(color.Bold).Sprint(r.Name))
		tree.AddMetaNode("path", faint(r.Path))
		tree.AddMetaNode("connection", r.Connection)
		tree.AddMetaNode("table", r.Table)
		tree.AddMetaNode("strategy", r.Strategy)

		fmt.Fprint(w, tree.String())
		fmt.Fprintf(w, "%s\n\n", highlightCode(r.Query, "sql"))
	}
}

func highlightCode(code string, language string) string {
	o, err := os.Stdout.Stat()
	if err != nil {
		return code
	}

	if (o.Mode() & os.ModeCharDevice) != os.ModeCharDevice {
		return code
	}
	b := new(strings.Builder)
	err = quick.Highlight(b, code, language, "terminal16m", "monokai")
	if err != nil {
		errorPrinter.Printf("Failed to highlight the query: %v\n", err.Error())
		return code
	}

	return b.String()
}
