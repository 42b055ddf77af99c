package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type NewCmd struct {
	flags *Flags

	// flags
	description string
	priority    string
	jsonOutput  bool
}

// NewNewCmd creates a new new command
func NewNewCmd(flags *Flags) *NewCmd {
	return &NewCmd{flags: flags}
}

// Register adds the new command to the application
func (cmd *NewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "new",
		Usage:     "Create a task",
		UsageText: "corkboard new [options] <title>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "desc",
				Aliases:     []string{"d"},
				Usage:       "task description",
				Destination: &cmd.description,
			},
			&cli.StringFlag{
				Name:        "priority",
				Aliases:     []string{"p"},
				Usage:       "task priority (low, medium, high)",
				Destination: &cmd.priority,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the created task as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *NewCmd) run(ctx context.Context, c *cli.Command) error {
	title := c.Args().First()
	if title == "" {
		return fmt.Errorf("usage: corkboard new <title>")
	}

	item, err := cmd.flags.Service.Create(ctx, cmd.flags.Identity(), task.Draft{
		Title:       title,
		Description: cmd.description,
		Priority:    task.Priority(cmd.priority),
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(item)
	}

	fmt.Fprintf(c.Root().Writer, "created %s\n", item.ID)
	return nil
}
