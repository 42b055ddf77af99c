package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type LsCmd struct {
	flags *Flags

	// flags
	completed  bool
	pending    bool
	priority   string
	page       int
	limit      int
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List tasks on the board",
		UsageText: "corkboard ls [--completed|--pending] [--priority P] [--page N] [--limit N] [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "completed",
				Usage:       "only completed tasks",
				Destination: &cmd.completed,
			},
			&cli.BoolFlag{
				Name:        "pending",
				Usage:       "only uncompleted tasks",
				Destination: &cmd.pending,
			},
			&cli.StringFlag{
				Name:        "priority",
				Aliases:     []string{"p"},
				Usage:       "filter by priority (low, medium, high)",
				Destination: &cmd.priority,
			},
			&cli.IntFlag{
				Name:        "page",
				Usage:       "page number",
				Value:       task.DefaultPage,
				Destination: &cmd.page,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "page size (max 100)",
				Value:       task.DefaultLimit,
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	filter := task.Filter{Priority: task.Priority(cmd.priority)}
	switch {
	case cmd.completed && cmd.pending:
		return fmt.Errorf("--completed and --pending are mutually exclusive")
	case cmd.completed:
		v := true
		filter.Completed = &v
	case cmd.pending:
		v := false
		filter.Completed = &v
	}

	page := task.Page{Number: cmd.page, Limit: cmd.limit}

	items, err := cmd.flags.Service.List(ctx, filter, page)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(items)
	}

	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tPRI\tTITLE\tLOCK")
	for _, item := range items {
		done := " "
		if item.Completed {
			done = "x"
		}
		lock := ""
		if item.Lock.Held() {
			lock = item.Lock.By
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\n", item.ID, done, item.Priority, item.Title, lock)
	}
	return w.Flush()
}
