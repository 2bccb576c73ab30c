package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/peaknext/projectflow/internal/domain"
)

type seeder interface {
	SeedProject(p *domain.Project, statuses []*domain.Status) error
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed a demo project with tasks",
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			s, ok := a.backend.(seeder)
			if !ok {
				return fmt.Errorf("backend %q does not support seeding", a.cfg.Backend.Driver)
			}

			project := domain.NewProject("dept-demo", "Website Relaunch", a.viewer)
			statuses := []*domain.Status{
				domain.NewStatus(project.ID, "To Do", 1, domain.StatusNotStarted),
				domain.NewStatus(project.ID, "In Progress", 2, domain.StatusInProgress),
				domain.NewStatus(project.ID, "Review", 3, domain.StatusInProgress),
				domain.NewStatus(project.ID, "Done", 4, domain.StatusDone),
			}
			if err := s.SeedProject(project, statuses); err != nil {
				return err
			}

			due := time.Now().Add(24 * time.Hour)
			hard := 4
			inputs := []domain.CreateTaskInput{
				{Name: "Draft landing copy", ProjectID: project.ID, StatusID: statuses[0].ID},
				{Name: "Design hero section", ProjectID: project.ID, StatusID: statuses[1].ID, Difficulty: &hard, DueDate: &due, AssigneeUserIDs: []string{a.viewer}},
				{Name: "Set up CDN", ProjectID: project.ID, StatusID: statuses[2].ID},
			}
			for _, in := range inputs {
				in.CreatedBy = a.viewer
				if _, err := a.backend.CreateTask(rootCtx, in); err != nil {
					return err
				}
			}

			fmt.Printf("seeded project %s (%s) with %d tasks\n", project.Name, project.ID, len(inputs))
			return nil
		}),
	}
}
