package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llmhub/internal/config"
	"llmhub/internal/hub"
	"llmhub/internal/models"
	"llmhub/pkg/client"
	"llmhub/pkg/logger"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "llmhub",
		Short:         "Pool local LLM endpoints into rooms behind one OpenAI-compatible API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Configure(cfg.Log.Level, cfg.Log.Format)
		},
	}
	root.PersistentFlags().StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format (text or json)")

	root.AddCommand(newServeCommand(cfg), newCreateCommand(), newListCommand(), newJoinCommand(cfg))

	if err := root.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			h := hub.New(cfg, logger.GlobalLogger.Component("server"))
			defer h.Close()

			logger.Info("Hub started on http://%s", cfg.Addr())
			logger.Info("Rooms API: http://%s/rooms", cfg.Addr())
			logger.Info("Participants go offline after %s without a health check", cfg.ParticipantTimeout())
			return h.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "address to bind")
	cmd.Flags().IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "port to listen on")
	cmd.Flags().DurationVar(&cfg.Liveness.Interval, "health-interval", cfg.Liveness.Interval, "liveness sweep interval; participants go offline after three missed intervals")
	return cmd
}

func newCreateCommand() *cobra.Command {
	var hubURL, name, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room on a hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.New(hubURL).Create(cmd.Context(), name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room created: %s (%s)\nHost ID: %s\n", resp.Room.Name, resp.Room.Code, resp.HostID)
			return nil
		},
	}
	cmd.Flags().StringVar(&hubURL, "hub", client.DefaultHubURL, "hub URL")
	cmd.Flags().StringVarP(&name, "name", "n", "", "room name")
	cmd.Flags().StringVar(&password, "password", "", "optional room password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCommand() *cobra.Command {
	var hubURL string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms on a hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := client.New(hubURL).List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rooms) == 0 {
				fmt.Fprintln(out, "No rooms")
				return nil
			}
			for _, r := range rooms {
				lock := ""
				if r.Protected {
					lock = " [protected]"
				}
				fmt.Fprintf(out, "%s  %-24s %d participant(s)%s\n", r.Code, r.Name, r.ParticipantCount, lock)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hubURL, "hub", client.DefaultHubURL, "hub URL")
	return cmd
}

type joinOptions struct {
	hubURL   string
	code     string
	req      models.JoinRoomRequest
	interval time.Duration
}

func newJoinCommand(cfg *config.Config) *cobra.Command {
	opts := joinOptions{}
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Register a local endpoint in a room and keep it alive until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return runJoin(ctx, client.New(opts.hubURL), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.hubURL, "hub", client.DefaultHubURL, "hub URL")
	f.StringVarP(&opts.code, "code", "c", "", "room code")
	f.StringVar(&opts.req.ID, "id", "", "participant id (random when empty)")
	f.StringVar(&opts.req.Nickname, "nickname", "", "display name (defaults to the model)")
	f.StringVarP(&opts.req.Model, "model", "m", "", "backend model name")
	f.StringVarP(&opts.req.Endpoint, "endpoint", "e", "http://localhost:11434", "OpenAI-compatible base URL")
	f.StringVar(&opts.req.Password, "password", "", "room password")
	f.DurationVar(&opts.interval, "interval", cfg.Liveness.Interval, "heartbeat interval")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runJoin(ctx context.Context, c *client.Client, opts joinOptions) error {
	if opts.req.ID == "" {
		opts.req.ID = uuid.NewString()
	}
	if opts.req.Nickname == "" {
		opts.req.Nickname = opts.req.Model
	}
	if opts.interval <= 0 {
		opts.interval = config.DefaultHealthCheckInterval
	}

	resp, err := c.Join(ctx, opts.code, opts.req)
	if err != nil {
		return err
	}
	logger.Info("Joined room %s as %s (%s)", opts.code, resp.Participant.ID, resp.Participant.Model)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// the signal context is already cancelled
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Leave(leaveCtx, opts.code, resp.Participant.ID); err != nil {
				logger.Error("Leave failed: %v", err)
				return nil
			}
			logger.Info("Left room %s", opts.code)
			return nil
		case <-ticker.C:
			if err := c.HealthCheck(ctx, opts.code, resp.Participant.ID); err != nil && ctx.Err() == nil {
				logger.Error("Health check failed: %v", err)
			}
		}
	}
}
