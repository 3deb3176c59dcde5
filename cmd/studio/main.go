package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scriptstudio/internal/app"
	"scriptstudio/internal/db"
	"scriptstudio/internal/domain"
	"scriptstudio/internal/engine"
	"scriptstudio/internal/migrate"
	"scriptstudio/internal/repo"
	"scriptstudio/internal/server"
	"scriptstudio/internal/studio"
	studiosdk "scriptstudio/sdk/go"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Script Studio CLI",
	Long: `Script Studio tracks freelance script orders from inquiry to delivery.
Orders start OPEN (sample production), get accepted into ACTIVE (script
production), and end up archived as COMPLETED or DECLINED. Artifacts are
the samples and scripts produced along the way, priced per quality tier.
Hand-off slots pass order batches between workflow panels.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STUDIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "API server for client commands")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(artifactCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(handoffCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := app.ResolveConfig(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			logger.Info("workspace ready", "studio", cfg.Studio.Name, "db", db.Path(workspace), "schema", v)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := app.ResolveConfig(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			csrf := server.CSRFConfig{Secret: os.Getenv("STUDIO_CSRF_SECRET")}
			if csrf.Secret == "" {
				logger.Warn("STUDIO_CSRF_SECRET not set; CSRF protection disabled")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, CSRF: csrf})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving Script Studio API", "addr", addr, "base", basePath, "docs", "/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func orderCmd() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
		Long:  "Orders flow OPEN -> ACTIVE -> COMPLETED, with DECLINED as the early exit from OPEN. Both terminal statuses land in the archive.",
	}
	order.AddCommand(orderCreateCmd())
	order.AddCommand(orderListCmd())
	order.AddCommand(orderShowCmd())
	order.AddCommand(orderTransitionCmd("accept", "accepted", "Accept an open order", engine.Engine.AcceptOrder))
	order.AddCommand(orderTransitionCmd("decline", "declined", "Decline an open order", engine.Engine.DeclineOrder))
	order.AddCommand(orderTransitionCmd("complete", "completed", "Complete an active order", engine.Engine.CompleteOrder))
	order.AddCommand(orderDeleteCmd())
	return order
}

func orderCreateCmd() *cobra.Command {
	var title, description, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{
					Title:       title,
					Description: description,
					Priority:    domain.Priority(priority),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "order title")
	cmd.Flags().StringVar(&description, "description", "", "order description")
	cmd.Flags().StringVar(&priority, "priority", "", "LOW, MEDIUM, or HIGH")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func orderListCmd() *cobra.Command {
	var partition string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Order
				var err error
				if partition != "" {
					items, err = e.ListPartition(ctx, domain.Partition(partition))
				} else {
					items, err = e.Repo.ListOrders(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printOrderTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&partition, "partition", "", "open, active, or archived")
	return cmd
}

func orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func orderTransitionCmd(verb, past, short string, fn func(engine.Engine, context.Context, string) (domain.Order, error)) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := fn(e, ctx, args[0])
				if err != nil {
					return err
				}
				logger.Info("order "+past, "id", o.ID, "status", o.Status)
				return printJSONOrTable(o)
			})
		},
	}
}

func orderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an order and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteOrder(ctx, args[0])
			})
		},
	}
}

func artifactCmd() *cobra.Command {
	artifact := &cobra.Command{
		Use:   "artifact",
		Short: "Manage samples and scripts",
		Long:  "Open orders collect samples, active orders collect scripts. Each artifact carries a quality tier and its generation cost.",
	}
	artifact.AddCommand(artifactAddCmd())
	artifact.AddCommand(artifactListCmd())
	artifact.AddCommand(artifactResearchCmd())
	return artifact
}

func artifactAddCmd() *cobra.Command {
	var orderID, title, body, quality string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an artifact to an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateArtifact(ctx, engine.ArtifactCreateOptions{
					OrderID: orderID,
					Title:   title,
					Body:    body,
					Quality: domain.QualityTier(quality),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().StringVar(&title, "title", "", "artifact title")
	cmd.Flags().StringVar(&body, "body", "", "artifact body")
	cmd.Flags().StringVar(&quality, "quality", "bronze", "bronze, silver, or gold")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func artifactListCmd() *cobra.Command {
	var orderID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an order's artifacts by week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				groups, err := e.ArtifactsByWeek(ctx, orderID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				for _, g := range groups {
					fmt.Println(g.Week)
					for _, a := range g.Artifacts {
						fmt.Printf("  %s [%s/%s] %s ($%.2f)\n", a.ID, a.Kind, a.Quality, a.Title, a.APICost)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func artifactResearchCmd() *cobra.Command {
	var cost float64
	cmd := &cobra.Command{
		Use:   "research <artifact-id>",
		Short: "Record a research API call against a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AddResearchCall(ctx, args[0], cost)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().Float64Var(&cost, "cost", 0, "call cost, defaults to the configured rate")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.DashboardStats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Metric", "Value"})
				t.AppendRows([]table.Row{
					{"Orders", stats.TotalOrders},
					{"Open", stats.OpenOrders},
					{"Active", stats.ActiveOrders},
					{"Completed", stats.CompletedOrders},
					{"Declined", stats.DeclinedOrders},
					{"Samples", stats.TotalSamples},
					{"Scripts", stats.TotalScripts},
					{"API cost", fmt.Sprintf("$%.2f", stats.APICostTotal)},
					{"Research cost", fmt.Sprintf("$%.2f", stats.ResearchCostTotal)},
				})
				t.Render()
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the order partitions from the server",
		Long:  "Polls the API on the configured interval and reports partition counts whenever the snapshot moves. A failed poll keeps the last good snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			interval := time.Duration(cfg.PollInterval()) * time.Second
			notifier := studio.LogNotifier{Logger: logger}
			store := studio.NewStore(studiosdk.New(viper.GetString("server")), logger)
			if err := store.LoadAll(cmd.Context()); err != nil {
				notifier.Warn("initial refresh failed, waiting for the poller", "err", err)
			}
			store.StartPolling(cmd.Context(), interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			var lastSeen time.Time
			report := func() {
				if !store.LastSync().After(lastSeen) {
					if err := store.LastError(); err != nil {
						notifier.Error("refresh failing, showing last snapshot", "err", err)
					}
					return
				}
				lastSeen = store.LastSync()
				notifier.Success("orders refreshed",
					"open", len(store.Partition("open")),
					"active", len(store.Partition("active")),
					"archived", len(store.Partition("archived")))
			}
			report()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					report()
				}
			}
		},
	}
}

func handoffCmd() *cobra.Command {
	handoff := &cobra.Command{
		Use:   "handoff",
		Short: "Hand order batches between panels",
		Long:  "Publishing freezes a partition's order list into a panel slot. Reading a slot never clears it.",
	}
	handoff.AddCommand(handoffPublishCmd())
	handoff.AddCommand(handoffShowCmd())
	return handoff
}

func handoffPublishCmd() *cobra.Command {
	var panel int
	var partition string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a partition's orders to a panel slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			status, ok := map[string]string{"open": "OPEN", "active": "ACTIVE"}[partition]
			if !ok {
				return fmt.Errorf("hand-off publishes the open or active partition, got %q", partition)
			}
			client := studiosdk.New(viper.GetString("server"))
			orders, err := client.ListOrders(cmd.Context(), partition)
			if err != nil {
				return err
			}
			h := studio.NewHandoff(viper.GetString("workspace"), cfg.Handoff.Panels, logger)
			return h.Publish(panel, status, orders)
		},
	}
	cmd.Flags().IntVar(&panel, "panel", 0, "destination panel number")
	cmd.Flags().StringVar(&partition, "partition", "", "open or active")
	_ = cmd.MarkFlagRequired("panel")
	_ = cmd.MarkFlagRequired("partition")
	return cmd
}

func handoffShowCmd() *cobra.Command {
	var panel int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a panel's hand-off record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			h := studio.NewHandoff(viper.GetString("workspace"), cfg.Handoff.Panels, logger)
			record, err := h.Consume(panel)
			if err != nil {
				return err
			}
			return printJSONOrTable(record)
		},
	}
	cmd.Flags().IntVar(&panel, "panel", 0, "panel number")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func exportCmd() *cobra.Command {
	var orderID, format, out string
	cmd := &cobra.Command{
		Use:   "export <artifact-id>",
		Short: "Export an artifact as document or markup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactID := args[0]
			client := studiosdk.New(viper.GetString("server"))
			switch studio.ExportFormat(strings.ToUpper(format)) {
			case studio.FormatDocument:
				data, filename, err := client.RenderDocument(cmd.Context(), artifactID)
				if err != nil {
					return err
				}
				return writeExport(out, filename, data)
			case studio.FormatMarkup:
				if orderID == "" {
					return fmt.Errorf("--order is required for markup export")
				}
				order, err := client.GetOrder(cmd.Context(), orderID)
				if err != nil {
					return err
				}
				groups, err := client.ListArtifacts(cmd.Context(), orderID)
				if err != nil {
					return err
				}
				for _, g := range groups {
					for _, a := range g.Artifacts {
						if a.ID == artifactID {
							data, err := studio.RenderMarkup(order, a)
							if err != nil {
								return err
							}
							return writeExport(out, fmt.Sprintf("%s_%s.html", order.ID, a.Kind), data)
						}
					}
				}
				return fmt.Errorf("artifact %s not found on order %s", artifactID, orderID)
			default:
				return fmt.Errorf("unknown format %q, use DOCUMENT or MARKUP", format)
			}
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id (markup export)")
	cmd.Flags().StringVar(&format, "format", "DOCUMENT", "DOCUMENT or MARKUP")
	cmd.Flags().StringVar(&out, "out", "", "output path, defaults to the server filename")
	return cmd
}

func writeExport(out, fallback string, data []byte) error {
	if out == "" {
		out = fallback
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	logger.Info("export written", "file", out, "bytes", len(data))
	return nil
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := app.ResolveConfig(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printOrderTable(items []domain.Order) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Partition", "Priority", "Created"})
	for _, o := range items {
		t.AppendRow(table.Row{o.ID, o.Title, o.Status, o.Partition(), o.Priority, o.CreatedAt})
	}
	t.Render()
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
