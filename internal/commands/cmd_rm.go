package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/urfave/cli/v3"
)

type RmCmd struct {
	flags *Flags
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rm",
		Usage:     "Delete a task",
		UsageText: "corkboard rm <task-id>",
		Action:    cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: corkboard rm <task-id>")
	}

	err := cmd.flags.Service.Delete(ctx, cmd.flags.Identity(), id)
	if err != nil {
		if errors.Is(err, task.ErrLockConflict) {
			return fmt.Errorf("task %s is being edited by another user", id)
		}
		return fmt.Errorf("delete task: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "deleted %s\n", id)
	return nil
}
