package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ToggleCmd struct {
	flags *Flags
}

// NewToggleCmd creates a new toggle command
func NewToggleCmd(flags *Flags) *ToggleCmd {
	return &ToggleCmd{flags: flags}
}

// Register adds the toggle command to the application
func (cmd *ToggleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "toggle",
		Usage:     "Flip a task's completion flag",
		UsageText: "corkboard toggle <task-id>",
		Action:    cmd.run,
	})

	return app
}

func (cmd *ToggleCmd) run(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: corkboard toggle <task-id>")
	}

	item, err := cmd.flags.Service.Toggle(ctx, cmd.flags.Identity(), id)
	if err != nil {
		return fmt.Errorf("toggle task: %w", err)
	}

	state := "pending"
	if item.Completed {
		state = "completed"
	}
	fmt.Fprintf(c.Root().Writer, "%s is now %s\n", item.ID, state)
	return nil
}
