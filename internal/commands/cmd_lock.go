package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/urfave/cli/v3"
)

// LockCmd registers the lock and unlock commands.
type LockCmd struct {
	flags *Flags

	// flags
	force bool
}

// NewLockCmd creates a new lock command
func NewLockCmd(flags *Flags) *LockCmd {
	return &LockCmd{flags: flags}
}

// Register adds the lock and unlock commands to the application
func (cmd *LockCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "lock",
			Usage:     "Acquire the edit lock on a task",
			UsageText: "corkboard lock <task-id>",
			Action:    cmd.runLock,
		},
		&cli.Command{
			Name:      "unlock",
			Usage:     "Release the edit lock on a task",
			UsageText: "corkboard unlock [--force] <task-id>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "force",
					Usage:       "clear the lock regardless of owner",
					Destination: &cmd.force,
				},
			},
			Action: cmd.runUnlock,
		},
	)

	return app
}

func (cmd *LockCmd) runLock(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: corkboard lock <task-id>")
	}

	item, err := cmd.flags.Service.Lock(ctx, cmd.flags.Identity(), id)
	if err != nil {
		if errors.Is(err, task.ErrLockConflict) {
			return fmt.Errorf("task %s is being edited by another user", id)
		}
		return fmt.Errorf("lock task: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "locked %s as %s\n", item.ID, item.Lock.By)
	return nil
}

func (cmd *LockCmd) runUnlock(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: corkboard unlock [--force] <task-id>")
	}

	var err error
	if cmd.force {
		err = cmd.flags.Service.ForceUnlock(ctx, id)
	} else {
		err = cmd.flags.Service.Unlock(ctx, cmd.flags.Identity(), id)
	}
	if err != nil {
		return fmt.Errorf("unlock task: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "unlocked %s\n", id)
	return nil
}
