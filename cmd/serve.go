package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/chartloom-cli/internal/server"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveSessionFile string
	serveName        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chart view over HTTP for the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		sessionFile := cfg.SessionFile
		if serveSessionFile != "" {
			sessionFile = serveSessionFile
		}
		log := newLogger(cmd)

		s := session.New(serveName)
		if sessionFile != "" {
			prev, err := session.Load(sessionFile)
			switch {
			case err == nil:
				s = prev
				log.Info("resumed session", "id", s.ID(), "file", sessionFile)
			case errors.Is(err, fs.ErrNotExist):
			default:
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: starting a fresh session: %v\n", err)
			}
		}

		srv := server.New(server.Config{
			Pipeline:     newPipeline(cmd),
			Session:      s,
			Logger:       log,
			MaxBodyBytes: cfg.MaxInputBytes,
			SessionFile:  sessionFile,
		})
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on http://%s (session %s)\n", addr, s.ID())
		if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: listen_addr from config)")
	serveCmd.Flags().StringVar(&serveSessionFile, "session-file", "", "persist the committed view here (default: session_file from config)")
	serveCmd.Flags().StringVar(&serveName, "name", "dashboard", "session name for a fresh session")
}
