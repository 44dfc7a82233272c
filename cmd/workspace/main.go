package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Minhal128/CodeX/common"
	"github.com/Minhal128/CodeX/common/id"
	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/common/otel"
	"github.com/Minhal128/CodeX/core/config"
	"github.com/Minhal128/CodeX/core/db"
	"github.com/Minhal128/CodeX/internal/apiclient"
	"github.com/Minhal128/CodeX/internal/channel"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/sandbox"
	"github.com/Minhal128/CodeX/internal/service"
	"github.com/Minhal128/CodeX/internal/store"
	"github.com/Minhal128/CodeX/internal/timeline"
	"github.com/Minhal128/CodeX/internal/workspace"
)

// projectBackend is what a session needs from wherever projects live.
type projectBackend interface {
	workspace.ProjectSource
	SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeWorkspace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize otel: %v\n", err)
		os.Exit(1)
	}

	// stdout belongs to the chat.
	logger.Setup(cfg, os.Stderr)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open project backend", "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	sandboxDir, err := resolveSandboxDir(ctx, cfg.Workspace, backend)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve sandbox dir", "error", err)
		os.Exit(1)
	}
	mounter, err := sandbox.NewDirMounter(sandboxDir)
	if err != nil {
		slog.ErrorContext(ctx, "failed to prepare sandbox", "error", err, "dir", sandboxDir)
		os.Exit(1)
	}

	channelOpts := []channel.Option{
		channel.WithReconnectDelay(cfg.Channel.ReconnectDelay),
		channel.WithMaxReconnectAttempts(cfg.Channel.MaxReconnectAttempts),
	}
	if cfg.Channel.EchoSuppression {
		channelOpts = append(channelOpts, channel.WithEchoSuppression())
	}
	manager := channel.NewManager(channel.NewRedisDialer(redisClient, cfg.Redis.ChannelPrefix), channelOpts...)
	manager.OnStateChange(func(s channel.State) {
		slog.InfoContext(ctx, "channel state changed",
			"phase", s.Phase.String(),
			"reconnect_attempts", s.ReconnectAttempts,
			"max_reconnect_attempts", s.MaxReconnectAttempts,
			"retry_scheduled", s.RetryScheduled)
	})

	tl := timeline.New()
	tl.Subscribe(printEntry(os.Stdout))

	self := model.Participant{ID: cfg.Workspace.UserID, DisplayName: cfg.Workspace.DisplayName}
	if self.DisplayName == "" {
		self.DisplayName = self.ID
	}

	session, err := workspace.Open(ctx, cfg.Workspace.ProjectID, workspace.Deps{
		Self:      self,
		Projects:  backend,
		Channel:   manager,
		Mounter:   mounter,
		Persister: backend,
		Timeline:  tl,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to open workspace", "error", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Workspace.MetricsAddr != "" {
		metricsServer = startMetrics(ctx, cfg.Workspace.MetricsAddr)
	}

	project := session.Project()
	fmt.Fprintf(os.Stdout, "joined %s (%s) as %s; sandbox at %s\n",
		project.Name, project.ID, self.DisplayName, sandboxDir)
	fmt.Fprintln(os.Stdout, "commands: :edit <path>, :tree, :state, :reset, :quit")

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	repl := &repl{session: session, out: os.Stdout}
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case line, ok := <-lines:
			if !ok {
				running = false
				break
			}
			running = repl.handle(ctx, line, lines)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := session.Settle(shutdownCtx); err != nil {
		slog.WarnContext(shutdownCtx, "sandbox or storage did not settle before exit", "error", err)
	}
	session.Close()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config) (projectBackend, func(), error) {
	if cfg.Workspace.RemoteAPI() {
		slog.InfoContext(ctx, "using remote project api", "base_url", cfg.Workspace.APIBaseURL)
		return apiclient.New(cfg.Workspace.APIBaseURL, nil), func() {}, nil
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	projects := service.NewProjectService(store.NewStores(database.Queries()).Projects(), service.NewTxRunner(database))
	return projects, database.Close, nil
}

// resolveSandboxDir uses the configured directory, or one named after the
// project under the system temp dir.
func resolveSandboxDir(ctx context.Context, cfg config.WorkspaceConfig, projects workspace.ProjectSource) (string, error) {
	if cfg.SandboxDir != "" {
		return cfg.SandboxDir, nil
	}
	project, err := projects.GetProject(ctx, cfg.ProjectID)
	if err != nil {
		return "", fmt.Errorf("loading project %s: %w", cfg.ProjectID, err)
	}
	slug, err := common.Slugify(project.Name, project.ID)
	if err != nil {
		return "", err
	}
	return filepath.Join(os.TempDir(), "codex", slug), nil
}

func startMetrics(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.InfoContext(ctx, "metrics server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()
	return server
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func printEntry(w io.Writer) func(timeline.Entry) {
	return func(e timeline.Entry) {
		name := e.Message.Sender.DisplayName
		if name == "" {
			name = e.Message.Sender.ID
		}
		fmt.Fprintf(w, "%s %-10s %s: %s\n", e.At.Format("15:04:05"), "["+string(e.Origin)+"]", name, e.Text())
	}
}

type repl struct {
	session *workspace.Session
	out     io.Writer
}

// handle runs one input line and reports whether the session continues.
func (r *repl) handle(ctx context.Context, line string, more <-chan string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if !strings.HasPrefix(trimmed, ":") {
		if err := r.session.Send(ctx, line); err != nil {
			fmt.Fprintf(r.out, "! not delivered (%v); use :state and :reset\n", err)
		}
		return true
	}

	command, arg, _ := strings.Cut(trimmed, " ")
	switch command {
	case ":quit", ":q":
		return false
	case ":tree":
		paths := filetree.Paths(r.session.Tree())
		if len(paths) == 0 {
			fmt.Fprintln(r.out, "(empty tree)")
		}
		for _, p := range paths {
			fmt.Fprintln(r.out, "  "+p)
		}
	case ":state":
		s := r.session.ChannelState()
		fmt.Fprintf(r.out, "channel %q: %s, %d of %d failed attempts, retry scheduled: %t\n",
			s.Key, s.Phase, s.ReconnectAttempts, s.MaxReconnectAttempts, s.RetryScheduled)
	case ":reset":
		if err := r.session.ResetChannel(ctx); err != nil {
			fmt.Fprintf(r.out, "! reset failed: %v\n", err)
		}
	case ":edit":
		path := strings.TrimSpace(arg)
		if path == "" {
			fmt.Fprintln(r.out, "! usage: :edit <path>, then the contents, then a line with :end")
			return true
		}
		contents, ok := readUntilEnd(ctx, more)
		if !ok {
			return false
		}
		if err := r.session.EditFile(ctx, path, contents); err != nil {
			fmt.Fprintf(r.out, "! edit failed: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "saved %s\n", path)
	default:
		fmt.Fprintf(r.out, "! unknown command %s\n", command)
	}
	return true
}

func readUntilEnd(ctx context.Context, lines <-chan string) (string, bool) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			if !ok {
				return "", false
			}
			if strings.TrimSpace(line) == ":end" {
				return b.String(), true
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
}
