package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairwise/internal/app"
	"pairwise/internal/config"
	"pairwise/internal/db"
	"pairwise/internal/domain"
	"pairwise/internal/engine"
	"pairwise/internal/logging"
	"pairwise/internal/metrics"
	"pairwise/internal/migrate"
	"pairwise/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pw",
	Short: "Pairwise CLI",
	Long: `Pairwise runs conversation rounds for small groups.
Core concepts:
- Group: a session opened by a supervisor under a short word token (TIGER, TIGER-2, ...).
- Participant: someone who joined the group; ids are handed out in join order and never reused.
- Round: everyone present is paired once; over consecutive rounds each participant meets every other exactly once.
- Roles: in each pair the first id leads the conversation; leadership alternates between the same two people.
- Supervisor: may join an odd roster as partner (id 0) so nobody sits out; always follows.
- Content: conversation prompts dispensed in rotation per group and category.
- Event log: diary of changes, view with 'pw log tail'.`,
	SilenceUsage: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PAIRWISE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(roundCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var serviceID string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create pairwise.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(serviceID)), 0o644); err != nil {
				return err
			}
			_, conn, err := app.Bootstrap(cmd.Context(), app.Options{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			version, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized %s and %s (schema v%d)\n", path, db.Path(workspace), version)
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceID, "id", "pairwise", "service id")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect workspace config"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.FromFile(path); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", path)
			return nil
		},
	})
	return cfgCmd
}

func groupCmd() *cobra.Command {
	grp := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
		Long:  "Groups are sessions identified by a word token; the actor that creates one supervises it.",
	}
	grp.AddCommand(groupCreateCmd())
	grp.AddCommand(groupListCmd())
	grp.AddCommand(groupShowCmd())
	grp.AddCommand(groupCloseCmd())
	grp.AddCommand(groupSupervisorCmd())
	grp.AddCommand(groupStateCmd())
	grp.AddCommand(groupImportCmd())
	return grp
}

func groupCreateCmd() *cobra.Command {
	var participates bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CreateGroupOptions{SupervisorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("supervisor-participates") {
					opts.SupervisorParticipates = &participates
				}
				g, err := e.CreateGroup(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().BoolVar(&participates, "supervisor-participates", false, "pair the supervisor into odd rosters")
	return cmd
}

func groupListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				groups, err := e.ListGroups(ctx, all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Token", "Supervisor", "Participants", "Rounds", "Status"})
				for _, g := range groups {
					status := "open"
					if g.Closed() {
						status = "closed"
					}
					tw.AppendRow(table.Row{g.Token, g.SupervisorID, len(g.Participants), g.RoundCounter, status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include closed groups")
	return cmd
}

func groupShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <token>",
		Short: "Show a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
}

func groupCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <token>",
		Short: "End a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.CloseGroup(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
}

func groupSupervisorCmd() *cobra.Command {
	var participates bool
	cmd := &cobra.Command{
		Use:   "supervisor <token>",
		Short: "Toggle whether the supervisor pairs into odd rosters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.SetSupervisorParticipation(ctx, args[0], participates, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().BoolVar(&participates, "participates", true, "supervisor participates")
	return cmd
}

func groupStateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "state <token>",
		Short: "Export the persisted state of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.ExportState(ctx, args[0])
				if err != nil {
					return err
				}
				if out == "" {
					return printJSON(st)
				}
				b, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				return os.WriteFile(out, b, 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func groupImportCmd() *cobra.Command {
	var file string
	var participates bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Rebuild a group from an exported state file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var st domain.GroupState
			if err := json.Unmarshal(data, &st); err != nil {
				return fmt.Errorf("invalid state file: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.ImportState(ctx, st, engine.ImportOptions{
					SupervisorID:           viper.GetString("actor-id"),
					SupervisorParticipates: participates,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "state file")
	cmd.Flags().BoolVar(&participates, "supervisor-participates", false, "pair the supervisor into odd rosters")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func participantCmd() *cobra.Command {
	p := &cobra.Command{Use: "participant", Short: "Manage group members"}
	p.AddCommand(participantJoinCmd())
	p.AddCommand(participantLeaveCmd())
	p.AddCommand(participantRemoveCmd())
	p.AddCommand(participantListCmd())
	return p
}

func participantJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <token> [name]",
		Short: "Join a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.JoinGroup(ctx, args[0], name)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func participantLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <token> <id>",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.LeaveGroup(ctx, args[0], id)
			})
		},
	}
}

func participantRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <token> <id>",
		Short: "Remove a participant (supervisor only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveParticipant(ctx, args[0], id, viper.GetString("actor-id"))
			})
		},
	}
}

func participantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <token>",
		Short: "List group members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(g.Participants)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Rounds", "Joined"})
				for _, p := range g.Participants {
					tw.AppendRow(table.Row{p.ID, p.Name, p.RoundCount, p.JoinedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func roundCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "round",
		Short: "Run and inspect rounds",
		Long:  "Each round pairs everyone present; the first id of a pair leads. Id 0 is the supervisor.",
	}
	r.AddCommand(roundRunCmd())
	r.AddCommand(roundHistoryCmd())
	return r
}

func roundRunCmd() *cobra.Command {
	var withContent bool
	var category string
	cmd := &cobra.Command{
		Use:   "run <token>",
		Short: "Compute the next round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RunRound(ctx, args[0], engine.RunRoundOptions{
					ActorID:     viper.GetString("actor-id"),
					WithContent: withContent || category != "",
					Category:    category,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				g, err := e.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				renderRounds(g, []domain.RoundResult{res})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withContent, "content", false, "dispense one prompt per pair")
	cmd.Flags().StringVar(&category, "category", "", "prompt category")
	return cmd
}

func roundHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <token>",
		Short: "List past rounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rounds, err := e.History(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rounds)
				}
				g, err := e.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				renderRounds(g, rounds)
				return nil
			})
		},
	}
}

func renderRounds(g domain.Group, rounds []domain.RoundResult) {
	names := make(map[int64]string, len(g.Participants)+1)
	names[domain.SupervisorID] = "supervisor"
	for _, p := range g.Participants {
		names[p.ID] = p.Name
	}
	label := func(id int64) string {
		if n, ok := names[id]; ok {
			return fmt.Sprintf("%s (%d)", n, id)
		}
		return fmt.Sprintf("#%d", id)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Round", "Leader", "Follower", "Prompt"})
	for _, r := range rounds {
		for i, pair := range r.Pairs {
			prompt := ""
			if i < len(r.Content) {
				prompt = r.Content[i]
			}
			tw.AppendRow(table.Row{r.RoundNumber, label(pair[0]), label(pair[1]), prompt})
		}
		if r.SittingOut != nil {
			tw.AppendRow(table.Row{r.RoundNumber, label(*r.SittingOut), "(sitting out)", ""})
		}
	}
	tw.Render()
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{Use: "token", Short: "Inspect the group token pool"}
	t.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Allocate the next token without opening a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tok, err := e.AllocateToken(ctx)
				if err != nil {
					return err
				}
				fmt.Println(tok)
				return nil
			})
		},
	})
	t.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show pool size and cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.TokenStats())
			})
		},
	})
	return t
}

func contentCmd() *cobra.Command {
	c := &cobra.Command{Use: "content", Short: "Manage conversation prompts"}
	c.AddCommand(contentNextCmd())
	c.AddCommand(contentAddCmd())
	c.AddCommand(contentListCmd())
	return c
}

func contentNextCmd() *cobra.Command {
	var scope, category string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Dispense a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Println(e.DispenseContent(scope, category))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "global", "dispensing scope")
	cmd.Flags().StringVar(&category, "category", "", "prompt category")
	return cmd
}

func contentAddCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a prompt to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.AddContent(ctx, args[0], tags, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func contentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the prompt catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items := e.ListContent()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Text", "Tags"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Text, strings.Join(it.Tags, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: groups opened, members joining and leaving, rounds run.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, token string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, token, evtType, n, 0)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&token, "group", "", "group token")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var roundTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServeEnv()
			if err != nil {
				return err
			}
			logger, err := logging.New(env.LogLevel, env.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			prom, err := metrics.NewPrometheus(reg)
			if err != nil {
				return err
			}

			e, conn, err := app.Bootstrap(cmd.Context(), app.Options{
				Workspace: viper.GetString("workspace"),
				Logger:    logger,
				Metrics:   prom,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			handler, err := server.New(server.Config{
				Engine:       e,
				BasePath:     basePath,
				Auth:         server.AuthConfig{JWTSecret: env.JWTSecret, DevLogin: env.DevLogin},
				Logger:       logger,
				Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				RoundTimeout: roundTimeout,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("serving pairwise api",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Bool("dev_login", env.DevLogin))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return server.RunWebhooks(ctx, e, logger)
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().DurationVar(&roundTimeout, "round-timeout", 5*time.Second, "max wait for a busy group")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Bootstrap(ctx, app.Options{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid participant id %q", raw)
	}
	return id, nil
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
