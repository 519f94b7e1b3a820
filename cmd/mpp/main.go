package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mpproj/internal/app"
	"mpproj/internal/archive"
	"mpproj/internal/config"
	"mpproj/internal/db"
	"mpproj/internal/domain"
	"mpproj/internal/export"
	"mpproj/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "mpp",
	Short: "mpproj project planner",
	Long: `mpp keeps project plans (tasks, resources, milestones, teams, costs, risks and a budget)
in a local workspace and tracks their document lifecycle.
- Workspace: the .mpproj directory holding the store, the lock and mpproj.yml overrides.
- Active project: the one document edits apply to; 'mpp project use' switches it.
- History: every edit can be undone and redone until the next save.
- Save: a named snapshot in the workspace catalog; 'mpp snapshot restore' brings it back.
- Export/open: .mpproj zip archives for moving a project between machines.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MPPROJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("driver", "", "storage driver: sqlite, fs or memory (overrides mpproj.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides mpproj.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(resourceCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(costCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(historyCmd("undo"))
	rootCmd.AddCommand(historyCmd("redo"))
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(lifecycleCmd("close"))
	rootCmd.AddCommand(lifecycleCmd("discard"))
	rootCmd.AddCommand(autosaveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(csvCmd())
	rootCmd.AddCommand(recentCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace and write a default mpproj.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage stored projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUseCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectInitializeCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items := ws.Engine.Projects()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				active := ""
				if p, err := ws.Engine.Current(); err == nil {
					active = p.ID
				}
				tw := newTable(table.Row{"", "ID", "Name", "Status", "Progress", "Updated"})
				for _, p := range items {
					mark := ""
					if p.ID == active {
						mark = "*"
					}
					tw.AppendRow(table.Row{mark, p.ID, p.Name, p.Status, fmt.Sprintf("%d%%", p.Progress), p.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.CreateProject(ctx, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name (generated when empty)")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a project; the active one without an id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				var p domain.Project
				var err error
				if len(args) == 1 {
					p, err = ws.Engine.Project(args[0])
				} else {
					p, err = ws.Engine.Current()
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a stored project active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.UseProject(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("active project: %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name, description, start, end, status string
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Edit project header fields",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				var p domain.Project
				var err error
				if len(args) == 1 {
					p, err = ws.Engine.Project(args[0])
				} else {
					p, err = ws.Engine.Current()
				}
				if err != nil {
					return err
				}
				f := cmd.Flags()
				if f.Changed("name") {
					p.Name = name
				}
				if f.Changed("description") {
					p.Description = description
				}
				if f.Changed("start") {
					p.StartDate = start
				}
				if f.Changed("end") {
					p.EndDate = end
				}
				if f.Changed("status") {
					p.Status = status
				}
				p, err = ws.Engine.UpdateProject(ctx, p)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "planning, active, completed or on-hold")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := ws.Engine.DeleteProject(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func projectInitializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Restore the latest snapshot, or create a project when there is none",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.InitializeFromLatestSnapshot(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("active project: %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
}

func budgetCmd() *cobra.Command {
	b := &cobra.Command{Use: "budget", Short: "Show or edit the active project's budget"}
	b.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Current()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p.Budget)
				}
				fmt.Printf("Total: %.2f %s  Spent: %.2f  Remaining: %.2f  Used: %d%%\n",
					p.Budget.Total, p.Budget.Currency, p.Budget.Spent, domain.BudgetRemaining(p.Budget), domain.BudgetUsage(p.Budget))
				tw := newTable(table.Row{"ID", "Category", "Planned", "Actual"})
				for _, c := range p.Budget.Categories {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Planned, c.Actual})
				}
				tw.Render()
				return nil
			})
		},
	})
	var total, spent float64
	var currency string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change budget totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Current()
				if err != nil {
					return err
				}
				next := p.Budget
				f := cmd.Flags()
				if f.Changed("total") {
					next.Total = total
				}
				if f.Changed("spent") {
					next.Spent = spent
				}
				if f.Changed("currency") {
					next.Currency = currency
				}
				out, err := ws.Engine.UpdateBudget(ctx, next)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	set.Flags().Float64Var(&total, "total", 0, "total budget")
	set.Flags().Float64Var(&spent, "spent", 0, "amount spent")
	set.Flags().StringVar(&currency, "currency", "", "currency code")
	b.AddCommand(set)
	return b
}

func historyCmd(op string) *cobra.Command {
	return &cobra.Command{
		Use:   op,
		Short: strings.ToUpper(op[:1]) + op[1:] + " the last change to the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				step := ws.Engine.Undo
				if op == "redo" {
					step = ws.Engine.Redo
				}
				c, err := step(ctx)
				if err != nil {
					return err
				}
				if c == nil {
					fmt.Println("nothing to " + op)
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"type": c.Type(), "targetId": c.TargetID()})
				}
				fmt.Printf("%s: %s %s\n", op, c.Type(), c.TargetID())
				return nil
			})
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Snapshot the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				entry, err := ws.Engine.SaveProject(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entry)
				}
				fmt.Println("saved", entry.Name)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the active project to a .mpproj archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Current()
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = p.Name + archive.Extension
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := ws.Engine.ExportProjectFile(ctx, f); err != nil {
					f.Close()
					os.Remove(path)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Println("exported", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (defaults to <name>.mpproj)")
	return cmd
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <file>",
		Short: "Open a .mpproj archive and make its project active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.OpenProjectFile(ctx, f, info.Size(), path)
				if err != nil {
					return err
				}
				fmt.Printf("opened %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
}

func snapshotCmd() *cobra.Command {
	s := &cobra.Command{Use: "snapshot", Short: "Inspect and restore saved snapshots"}
	s.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest last",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListSnapshots(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"Name", "Project", "Type", "Created"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.Name, it.ProjectID, it.Type, it.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Show the newest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				latest, err := ws.Engine.LatestSnapshot(ctx)
				if err != nil {
					return err
				}
				if latest == nil {
					fmt.Println("no snapshots")
					return nil
				}
				return printJSONOrTable(latest)
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "restore <name>",
		Short: "Make a snapshot's project active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.RestoreSnapshot(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("restored %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := ws.Engine.RemoveSnapshot(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return s
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the document lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				st := ws.Engine.State()
				active := ""
				if p, err := ws.Engine.Current(); err == nil {
					active = p.ID
				}
				out := map[string]any{
					"state":           st,
					"activeProjectId": active,
					"undoDepth":       ws.Engine.UndoLen(),
					"redoDepth":       ws.Engine.RedoLen(),
					"referencePolicy": ws.Engine.Policy(),
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("State: %s (unsaved: %t, untitled: %t, autosave: %s)\n", st.CurrentState, st.HasUnsavedChanges, st.IsUntitled, st.AutosaveTimer)
				if active != "" {
					fmt.Println("Active project:", active)
				} else {
					fmt.Println("Active project: none")
				}
				fmt.Printf("History: %d undo, %d redo\n", ws.Engine.UndoLen(), ws.Engine.RedoLen())
				return nil
			})
		},
	}
}

func lifecycleCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: "Apply the " + action + " lifecycle action",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				apply := ws.Engine.Close
				if action == "discard" {
					apply = ws.Engine.Discard
				}
				st, err := apply(ctx)
				if err != nil {
					return err
				}
				fmt.Println("state:", st.CurrentState)
				return nil
			})
		},
	}
}

func autosaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "autosave <on|off>",
		Short:     "Turn autosave on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch args[0] {
			case "on":
				active = true
			case "off":
			default:
				return fmt.Errorf("invalid autosave value %q (want on or off)", args[0])
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				st, err := ws.Engine.SetAutosave(ctx, active)
				if err != nil {
					return err
				}
				fmt.Println("autosave:", st.AutosaveTimer)
				return nil
			})
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the workspace config and the active project's data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				issues, err := ws.Engine.Issues()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ok": len(issues) == 0, "issues": issues})
				}
				if len(issues) == 0 {
					fmt.Println("config OK, no data issues")
					return nil
				}
				for _, is := range issues {
					fmt.Println("-", is)
				}
				return nil
			})
		},
	}
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Dashboard summary of the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				m, err := ws.Engine.Metrics()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				tw := newTable(table.Row{"Metric", "Value"})
				tw.AppendRow(table.Row{"Task completion", fmt.Sprintf("%d%%", m.TaskCompletion)})
				tw.AppendRow(table.Row{"Upcoming milestones", m.UpcomingMilestones})
				tw.AppendRow(table.Row{"Resource utilization", fmt.Sprintf("%d%%", m.ResourceUtilization)})
				tw.AppendRow(table.Row{"Budget used", fmt.Sprintf("%d%% (%s)", m.BudgetPercentage, m.BudgetStatus)})
				tw.AppendRow(table.Row{"Risks low/medium/high", fmt.Sprintf("%d/%d/%d", m.Risks.Low, m.Risks.Medium, m.Risks.High)})
				tw.Render()
				return nil
			})
		},
	}
}

func csvCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "csv <costs|risks|tasks>",
		Short:     "Export a collection of the active project as CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(export.KindCosts), string(export.KindRisks), string(export.KindTasks)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := export.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Current()
				if err != nil {
					return err
				}
				var w io.Writer = os.Stdout
				if out != "" {
					path := out
					if info, err := os.Stat(out); err == nil && info.IsDir() {
						path = filepath.Join(out, export.FileName(p.Name, kind))
					}
					f, err := os.Create(path)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return export.Write(w, p, kind)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file or directory to write (stdout when empty)")
	return cmd
}

func recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.RecentProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"File", "Project", "Temporary", "Opened", "Path"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.FileName, r.ProjectUUID, r.IsTemporary, r.OpenedAt, r.FilePath})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the change journal (sqlite driver)"}
	var n int
	var projectID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent journal events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if ws.Events == nil {
					return fmt.Errorf("the %s driver keeps no journal", ws.Config.Storage.Driver)
				}
				items, err := ws.Events.List(ctx, projectID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Time", "Type", "Kind", "Entity"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind, evt.EntityID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&projectID, "project", "", "project id filter")
	l.AddCommand(tail)
	return l
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				handler, err := server.New(server.Config{
					Engine:   ws.Engine,
					BasePath: basePath,
					Log:      ws.Log,
					Events:   ws.Events,
				})
				if err != nil {
					return err
				}
				go ws.Engine.RunAutosave(ctx, ws.Config.Autosave.Interval.Std())
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				ws.Log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving API")
				fmt.Printf("Serving mpproj API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Driver:    viper.GetString("driver"),
		LogLevel:  viper.GetString("log-level"),
	})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
