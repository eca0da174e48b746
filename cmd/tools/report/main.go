package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ben/grant-pursuit/internal/db"
	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/models"
	"github.com/ben/grant-pursuit/internal/pursuit"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Prints the pursuit pipeline from the configured store: per-stage counts,
// then one row per tracked grant with its open tasks and budgeted total.
func main() {
	ctx := context.Background()

	if os.Getenv("DATABASE_URL") == "" {
		log.Fatal("DATABASE_URL is not set; the report reads persisted pursuit state")
	}

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := pursuit.New(kv.NewPostgres(pool))
	if err := store.Load(ctx); err != nil {
		log.Fatal(err)
	}

	grants := store.List()

	stageCounts := make(map[models.Stage]int)
	for _, g := range grants {
		stageCounts[g.Stage]++
	}

	stages := table.NewWriter()
	stages.SetOutputMirror(os.Stdout)
	stages.SetTitle("Pipeline by stage")
	stages.AppendHeader(table.Row{"Stage", "Pursuits"})
	for _, stage := range models.AllStages {
		if n := stageCounts[stage]; n > 0 {
			stages.AppendRow(table.Row{string(stage), n})
		}
	}
	stages.Render()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Tracked pursuits")
	t.AppendHeader(table.Row{"Title", "Issuer", "Stage", "Amount", "Deadline", "Open Tasks", "Budgeted"})

	for _, g := range grants {
		deadline := "-"
		if g.Deadline != nil {
			deadline = g.Deadline.Format("2006-01-02")
		}

		open := 0
		for _, task := range store.TasksFor(g.ID) {
			if task.Status != models.TaskDone {
				open++
			}
		}

		var budgeted float64
		for _, line := range store.BudgetFor(g.ID) {
			budgeted += line.Amount
		}

		t.AppendRow(table.Row{
			truncate(g.Title, 48),
			truncate(g.Issuer, 28),
			string(g.Stage),
			fmt.Sprintf("%.0f", g.Amount),
			deadline,
			open,
			fmt.Sprintf("%.0f", budgeted),
		})
	}
	t.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
