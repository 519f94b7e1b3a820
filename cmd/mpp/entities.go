package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mpproj/internal/app"
	"mpproj/internal/domain"
	"mpproj/internal/engine"
)

// entityCommands describes the add/update/delete/list group of one project
// collection. bind registers the field flags on a command and returns a
// function that copies the changed ones into a record.
type entityCommands[T domain.Entity] struct {
	use      string
	short    string
	create   func(now time.Time) T
	bind     func(cmd *cobra.Command) func(*T)
	list     func(domain.Project) []T
	header   table.Row
	row      func(T) table.Row
	add      func(*engine.Engine) func(context.Context, T) (T, error)
	update   func(*engine.Engine) func(context.Context, T) (T, error)
	remove   func(*engine.Engine) func(context.Context, string) error
	required []string
}

func (c entityCommands[T]) command() *cobra.Command {
	root := &cobra.Command{Use: c.use, Short: c.short}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a " + c.use + " to the active project",
	}
	applyAdd := c.bind(add)
	add.RunE = func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
			v := c.create(time.Now())
			applyAdd(&v)
			out, err := c.add(ws.Engine)(ctx, v)
			if err != nil {
				return err
			}
			return printJSONOrTable(out)
		})
	}
	for _, name := range c.required {
		_ = add.MarkFlagRequired(name)
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a " + c.use,
		Args:  cobra.ExactArgs(1),
	}
	applyUpdate := c.bind(update)
	update.RunE = func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
			p, err := ws.Engine.Current()
			if err != nil {
				return err
			}
			v, ok := find(c.list(p), args[0])
			if !ok {
				return fmt.Errorf("%s %s: %w", c.use, args[0], engine.ErrNotFound)
			}
			applyUpdate(&v)
			out, err := c.update(ws.Engine)(ctx, v)
			if err != nil {
				return err
			}
			return printJSONOrTable(out)
		})
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + c.use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := c.remove(ws.Engine)(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List " + c.use + " records of the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Current()
				if err != nil {
					return err
				}
				items := c.list(p)
				if viper.GetBool("json") {
					if items == nil {
						items = []T{}
					}
					return printJSON(items)
				}
				tw := newTable(c.header)
				for _, it := range items {
					tw.AppendRow(c.row(it))
				}
				tw.Render()
				return nil
			})
		},
	}

	root.AddCommand(add, update, remove, list)
	return root
}

func find[T domain.Entity](items []T, id string) (T, bool) {
	for _, it := range items {
		if it.Key() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func taskCmd() *cobra.Command {
	return entityCommands[domain.Task]{
		use:   "task",
		short: "Manage tasks of the active project",
		create: func(now time.Time) domain.Task {
			today := domain.Date(now)
			return domain.NewTask(now, "", today, today, "")
		},
		bind: func(cmd *cobra.Command) func(*domain.Task) {
			var name, description, start, end, status, priority, milestone, notes string
			var progress int
			var assign, deps []string
			f := cmd.Flags()
			f.StringVar(&name, "name", "", "task name")
			f.StringVar(&description, "description", "", "description")
			f.StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
			f.StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
			f.StringVar(&status, "status", "", "not-started, in-progress, completed or delayed")
			f.StringVar(&priority, "priority", "", "low, medium, high or urgent")
			f.StringVar(&milestone, "milestone", "", "milestone id")
			f.StringVar(&notes, "notes", "", "notes")
			f.IntVar(&progress, "progress", 0, "progress percentage")
			f.StringArrayVar(&assign, "assign", nil, "assigned resource id (repeatable)")
			f.StringArrayVar(&deps, "depends-on", nil, "dependency task id (repeatable)")
			return func(t *domain.Task) {
				if f.Changed("name") {
					t.Name = name
				}
				if f.Changed("description") {
					t.Description = description
				}
				if f.Changed("start") {
					t.StartDate = start
				}
				if f.Changed("end") {
					t.EndDate = end
				}
				if f.Changed("start") || f.Changed("end") {
					t.Duration = domain.TaskDuration(t.StartDate, t.EndDate)
				}
				if f.Changed("status") {
					t.Status = status
				}
				if f.Changed("priority") {
					t.Priority = priority
				}
				if f.Changed("milestone") {
					t.MilestoneID = milestone
				}
				if f.Changed("notes") {
					t.Notes = notes
				}
				if f.Changed("progress") {
					t.Progress = progress
				}
				if f.Changed("assign") {
					t.AssignedTo = assign
				}
				if f.Changed("depends-on") {
					t.Dependencies = deps
				}
			}
		},
		list:   func(p domain.Project) []domain.Task { return p.Tasks },
		header: table.Row{"ID", "Name", "Start", "End", "Status", "Progress", "Assignees"},
		row: func(t domain.Task) table.Row {
			return table.Row{t.ID, t.Name, t.StartDate, t.EndDate, t.Status, fmt.Sprintf("%d%%", t.Progress), strings.Join(t.AssignedTo, ",")}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.Task) (domain.Task, error) { return e.AddTask },
		update:   func(e *engine.Engine) func(context.Context, domain.Task) (domain.Task, error) { return e.UpdateTask },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteTask },
		required: []string{"name"},
	}.command()
}

func resourceCmd() *cobra.Command {
	var kind string
	return entityCommands[domain.Resource]{
		use:   "resource",
		short: "Manage resources of the active project",
		create: func(now time.Time) domain.Resource {
			return domain.NewResource(now, "", kind)
		},
		bind: func(cmd *cobra.Command) func(*domain.Resource) {
			var name, typ, email, role, team string
			var cost float64
			f := cmd.Flags()
			f.StringVar(&name, "name", "", "resource name")
			if cmd.Use == "add" {
				f.StringVar(&kind, "type", "human", "human, material or equipment")
			} else {
				f.StringVar(&typ, "type", "", "human, material or equipment")
			}
			f.StringVar(&email, "email", "", "email")
			f.StringVar(&role, "role", "", "role")
			f.StringVar(&team, "team", "", "team id")
			f.Float64Var(&cost, "cost", 0, "cost rate")
			return func(r *domain.Resource) {
				if f.Changed("name") {
					r.Name = name
				}
				if cmd.Use != "add" && f.Changed("type") {
					r.Type = typ
				}
				if f.Changed("email") {
					r.Email = email
				}
				if f.Changed("role") {
					r.Role = role
				}
				if f.Changed("team") {
					r.TeamID = team
				}
				if f.Changed("cost") {
					r.Cost = cost
				}
			}
		},
		list:   func(p domain.Project) []domain.Resource { return p.Resources },
		header: table.Row{"ID", "Name", "Type", "Role", "Team", "Cost"},
		row: func(r domain.Resource) table.Row {
			return table.Row{r.ID, r.Name, r.Type, r.Role, r.TeamID, r.Cost}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.Resource) (domain.Resource, error) { return e.AddResource },
		update:   func(e *engine.Engine) func(context.Context, domain.Resource) (domain.Resource, error) { return e.UpdateResource },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteResource },
		required: []string{"name"},
	}.command()
}

func milestoneCmd() *cobra.Command {
	return entityCommands[domain.Milestone]{
		use:   "milestone",
		short: "Manage milestones of the active project",
		create: func(now time.Time) domain.Milestone {
			return domain.NewMilestone(now, "", domain.Date(now), "")
		},
		bind: func(cmd *cobra.Command) func(*domain.Milestone) {
			var name, description, date, status string
			var tasks []string
			f := cmd.Flags()
			f.StringVar(&name, "name", "", "milestone name")
			f.StringVar(&description, "description", "", "description")
			f.StringVar(&date, "date", "", "due date (YYYY-MM-DD)")
			f.StringVar(&status, "status", "", "upcoming, reached or missed")
			f.StringArrayVar(&tasks, "task", nil, "linked task id (repeatable)")
			return func(m *domain.Milestone) {
				if f.Changed("name") {
					m.Name = name
				}
				if f.Changed("description") {
					m.Description = description
				}
				if f.Changed("date") {
					m.Date = date
				}
				if f.Changed("status") {
					m.Status = status
				}
				if f.Changed("task") {
					m.TaskIDs = tasks
				}
			}
		},
		list:   func(p domain.Project) []domain.Milestone { return p.Milestones },
		header: table.Row{"ID", "Name", "Date", "Status", "Tasks"},
		row: func(m domain.Milestone) table.Row {
			return table.Row{m.ID, m.Name, m.Date, m.Status, len(m.TaskIDs)}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.Milestone) (domain.Milestone, error) { return e.AddMilestone },
		update:   func(e *engine.Engine) func(context.Context, domain.Milestone) (domain.Milestone, error) { return e.UpdateMilestone },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteMilestone },
		required: []string{"name"},
	}.command()
}

func teamCmd() *cobra.Command {
	return entityCommands[domain.Team]{
		use:   "team",
		short: "Manage teams of the active project",
		create: func(now time.Time) domain.Team {
			return domain.NewTeam(now, "", "")
		},
		bind: func(cmd *cobra.Command) func(*domain.Team) {
			var name, description string
			var members []string
			f := cmd.Flags()
			f.StringVar(&name, "name", "", "team name")
			f.StringVar(&description, "description", "", "description")
			f.StringArrayVar(&members, "member", nil, "member resource id (repeatable)")
			return func(t *domain.Team) {
				if f.Changed("name") {
					t.Name = name
				}
				if f.Changed("description") {
					t.Description = description
				}
				if f.Changed("member") {
					t.Members = members
				}
			}
		},
		list:   func(p domain.Project) []domain.Team { return p.Teams },
		header: table.Row{"ID", "Name", "Members"},
		row: func(t domain.Team) table.Row {
			return table.Row{t.ID, t.Name, strings.Join(t.Members, ",")}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.Team) (domain.Team, error) { return e.AddTeam },
		update:   func(e *engine.Engine) func(context.Context, domain.Team) (domain.Team, error) { return e.UpdateTeam },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteTeam },
		required: []string{"name"},
	}.command()
}

func costCmd() *cobra.Command {
	return entityCommands[domain.CostRecord]{
		use:   "cost",
		short: "Manage cost records of the active project",
		create: func(now time.Time) domain.CostRecord {
			return domain.NewCostRecord(now, "")
		},
		bind: func(cmd *cobra.Command) func(*domain.CostRecord) {
			var task, category, currency, date, invoice, status, note string
			var amount float64
			f := cmd.Flags()
			f.StringVar(&task, "task", "", "task id")
			f.Float64Var(&amount, "amount", 0, "amount")
			f.StringVar(&category, "category", "", "budget category")
			f.StringVar(&currency, "currency", "", "currency code")
			f.StringVar(&date, "date", "", "date (YYYY-MM-DD)")
			f.StringVar(&invoice, "invoice", "", "invoice id")
			f.StringVar(&status, "status", "", "pending or paid")
			f.StringVar(&note, "note", "", "note")
			return func(c *domain.CostRecord) {
				if f.Changed("task") {
					c.TaskID = task
				}
				if f.Changed("amount") {
					c.Amount = amount
				}
				if f.Changed("category") {
					c.Category = category
				}
				if f.Changed("currency") {
					c.Currency = currency
				}
				if f.Changed("date") {
					c.Date = date
				}
				if f.Changed("invoice") {
					c.InvoiceID = invoice
				}
				if f.Changed("status") {
					c.Status = status
				}
				if f.Changed("note") {
					c.Note = note
				}
			}
		},
		list:   func(p domain.Project) []domain.CostRecord { return p.Costs },
		header: table.Row{"ID", "Date", "Amount", "Category", "Status", "Note"},
		row: func(c domain.CostRecord) table.Row {
			return table.Row{c.ID, c.Date, fmt.Sprintf("%.2f %s", c.Amount, c.Currency), c.Category, c.Status, c.Note}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.CostRecord) (domain.CostRecord, error) { return e.AddCost },
		update:   func(e *engine.Engine) func(context.Context, domain.CostRecord) (domain.CostRecord, error) { return e.UpdateCost },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteCost },
		required: []string{"amount"},
	}.command()
}

func riskCmd() *cobra.Command {
	return entityCommands[domain.Risk]{
		use:   "risk",
		short: "Manage risks of the active project",
		create: func(now time.Time) domain.Risk {
			return domain.NewRisk(now, "")
		},
		bind: func(cmd *cobra.Command) func(*domain.Risk) {
			var name, description, probability, impact, status, mitigation, owner string
			f := cmd.Flags()
			f.StringVar(&name, "name", "", "risk title")
			f.StringVar(&description, "description", "", "description")
			f.StringVar(&probability, "probability", "", "low, medium or high")
			f.StringVar(&impact, "impact", "", "low, medium or high")
			f.StringVar(&status, "status", "", "identified, mitigated or occurred")
			f.StringVar(&mitigation, "mitigation", "", "mitigation plan")
			f.StringVar(&owner, "owner", "", "owner")
			return func(r *domain.Risk) {
				if f.Changed("name") {
					r.Name = name
				}
				if f.Changed("description") {
					r.Description = description
				}
				if f.Changed("probability") {
					r.Probability = probability
				}
				if f.Changed("impact") {
					r.Impact = impact
				}
				if f.Changed("status") {
					r.Status = status
				}
				if f.Changed("mitigation") {
					r.Mitigation = mitigation
				}
				if f.Changed("owner") {
					r.Owner = owner
				}
			}
		},
		list:   func(p domain.Project) []domain.Risk { return p.Risks },
		header: table.Row{"ID", "Title", "Probability", "Impact", "Status"},
		row: func(r domain.Risk) table.Row {
			return table.Row{r.ID, r.Name, r.Probability, r.Impact, r.Status}
		},
		add:      func(e *engine.Engine) func(context.Context, domain.Risk) (domain.Risk, error) { return e.AddRisk },
		update:   func(e *engine.Engine) func(context.Context, domain.Risk) (domain.Risk, error) { return e.UpdateRisk },
		remove:   func(e *engine.Engine) func(context.Context, string) error { return e.DeleteRisk },
		required: []string{"name"},
	}.command()
}
