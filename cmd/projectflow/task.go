package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peaknext/projectflow/internal/domain"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Mutate tasks through the optimistic engine",
	}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(taskCloseCmd())
	cmd.AddCommand(taskDeleteCmd())
	cmd.AddCommand(taskPinCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var (
		projectID  string
		statusID   string
		priority   int
		difficulty int
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			in := domain.CreateTaskInput{
				Name:      args[0],
				ProjectID: projectID,
				StatusID:  statusID,
			}
			if cmd.Flags().Changed("priority") {
				in.Priority = &priority
			}
			if cmd.Flags().Changed("difficulty") {
				in.Difficulty = &difficulty
			}
			t, err := a.engine.CreateTask(rootCtx, in)
			if err != nil {
				return err
			}
			fmt.Printf("created %s  %s\n", t.ID, t.Name)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	cmd.Flags().StringVarP(&statusID, "status", "s", "", "status id")
	cmd.Flags().IntVar(&priority, "priority", 3, "priority 1-4, 1 is urgent")
	cmd.Flags().IntVar(&difficulty, "difficulty", 1, "difficulty 1-5")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var (
		name       string
		statusID   string
		priority   int
		difficulty int
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Apply a partial update to a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			var in domain.UpdateTaskInput
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("status") {
				in.StatusID = &statusID
			}
			if cmd.Flags().Changed("priority") {
				in.Priority = &priority
			}
			if cmd.Flags().Changed("difficulty") {
				in.Difficulty = &difficulty
			}
			t, err := a.engine.UpdateTask(rootCtx, args[0], in)
			if err != nil {
				return err
			}
			fmt.Printf("updated %s  %s\n", t.ID, t.Name)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&statusID, "status", "s", "", "new status id")
	cmd.Flags().IntVar(&priority, "priority", 0, "new priority 1-4")
	cmd.Flags().IntVar(&difficulty, "difficulty", 0, "new difficulty 1-5")
	return cmd
}

func taskCloseCmd() *cobra.Command {
	var (
		abort   bool
		comment string
	)
	cmd := &cobra.Command{
		Use:   "close <task-id>",
		Short: "Close a task as completed (or aborted)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			in := domain.CloseTaskInput{Type: domain.CloseCompleted, Comment: comment}
			if abort {
				in.Type = domain.CloseAborted
			}
			t, err := a.engine.CloseTask(rootCtx, args[0], in)
			if err != nil {
				return err
			}
			fmt.Printf("closed %s as %s\n", t.ID, *t.CloseType)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "close as aborted instead of completed")
	cmd.Flags().StringVar(&comment, "comment", "", "closing comment")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Soft-delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			if err := a.engine.DeleteTask(rootCtx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		}),
	}
}

func taskPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <task-id>",
		Short: "Toggle the acting user's pin on a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			if err := a.engine.TogglePin(rootCtx, args[0]); err != nil {
				return err
			}
			fmt.Printf("toggled pin on %s\n", args[0])
			return nil
		}),
	}
}
