package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/peaknext/projectflow/internal/domain"
	"github.com/peaknext/projectflow/internal/views"
)

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects with their completion ratio",
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			projects, err := a.backend.ListProjects(rootCtx, domain.ProjectFilter{})
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("no projects; run `projectflow seed` first")
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%s  %-28s %-10s %3.0f%%\n", p.ID, p.Name, p.Status, p.Progress*100)
			}
			return nil
		}),
	}
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board <project-id>",
		Short: "Show a project's kanban board",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			binding := views.BindBoard(a.store, a.backend, args[0])
			v, err := a.read(binding)
			if err != nil {
				return err
			}
			board := v.(*views.Board)
			if board.Project == nil {
				return fmt.Errorf("project %s not found", args[0])
			}

			fmt.Printf("%s  (%.0f%% complete)\n", board.Project.Name, board.Project.Progress*100)
			for _, col := range board.Columns {
				fmt.Printf("\n[%s]\n", col.Status.Name)
				for _, t := range col.Tasks {
					marker := " "
					if t.IsClosed {
						marker = "x"
					}
					fmt.Printf("  %s %-8s P%d  %s\n", marker, shortID(t.ID), t.Priority, t.Name)
				}
			}
			return nil
		}),
	}
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Show a project's completion breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			// Prime the cache so the breakdown comes from task data, not just
			// the server's cached ratio.
			binding := views.BindBoard(a.store, a.backend, args[0])
			if err := binding.Fetch(rootCtx); err != nil {
				return err
			}
			res, err := views.ProjectProgress(rootCtx, a.store, a.backend, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("progress %.1f%%  (%d/%d weight)\n", res.Progress*100, res.AchievedWeight, res.TotalWeight)
			fmt.Printf("tasks: %d total, %d open, %d completed, %d aborted\n",
				res.TotalTasks, res.OpenTasks, res.CompletedTasks, res.AbortedTasks)
			return nil
		}),
	}
}

func dashboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the acting user's dashboard",
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			binding := views.BindDashboard(a.store, a.backend, a.viewer, views.DashboardOptions{
				MyCreated:    views.PageWindow{Limit: limit},
				AssignedToMe: views.PageWindow{Limit: limit},
			}, time.Now)
			v, err := a.read(binding)
			if err != nil {
				return err
			}
			d := v.(*views.Dashboard)

			fmt.Printf("assigned %d  created %d  overdue %d  due soon %d  pinned %d\n",
				d.Stats.AssignedTasks, d.Stats.CreatedTasks,
				d.Stats.OverdueTasks, d.Stats.DueSoonTasks, d.Stats.PinnedTasks)

			printTaskSection("Assigned to me", d.AssignedToMe, d.AssignedToMeTotal)
			printTaskSection("My created", d.MyCreated, d.MyCreatedTotal)
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "tasks shown per section")
	return cmd
}

func printTaskSection(title string, tasks []*domain.Task, total int) {
	fmt.Printf("\n%s (%d of %d)\n", title, len(tasks), total)
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Printf("  %-8s P%d  due %-10s  %s\n", shortID(t.ID), t.Priority, due, t.Name)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
