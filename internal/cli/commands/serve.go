package commands

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host  string
	Port  int
	Watch bool
	Open  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(version string) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start a local HTTP server exposing the cell views, completion and the
catalog as a JSON API.

Catalog updates are pushed to subscribers of /api/events as
server-sent events, whether they come from the API, from introspection or
from edits to the catalog file when --watch is on.`,
		Example: `  # Start on the configured port
  cellsql serve

  # Start on a custom port and reload the catalog file on change
  cellsql serve --port 3000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, version)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Interface to bind (default: 127.0.0.1)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8766)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the catalog file when it changes")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the connection list in a browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions, version string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// CLI flags override config file
	srvCfg := cmdCtx.Cfg.GetServerConfig()
	host := srvCfg.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := srvCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cmdCtx.Cfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}
	if watch && cmdCtx.Workspace.CatalogFile() == "" {
		cmdCtx.Renderer.Warning("--watch ignored: no catalog file configured")
		watch = false
	}

	srv := server.NewServer(server.Config{
		Workspace: cmdCtx.Workspace,
		Host:      host,
		Port:      port,
		Watch:     watch,
		Version:   version,
		Logger:    cmdCtx.Logger,
	})

	url := fmt.Sprintf("http://%s:%d", displayHost(host), port)
	if opts.Open {
		go openBrowser(url + "/api/catalog/connections")
	}

	cmdCtx.Renderer.Printf("Serving cellsql API on %s\n", url)
	cmdCtx.Renderer.Muted("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
