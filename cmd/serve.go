package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/server"
)

var (
	servePort     int
	serveAllowAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for rosters, validation and imports",
	Long:  `Starts a JSON HTTP API over the profiles in the data directory, for dashboards and LMS integrations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		database, hist, err := a.openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		srv := server.New(server.Config{
			Port:            servePort,
			AllowAll:        serveAllowAll,
			DefaultTemplate: a.cfg.RepoNameTemplate,
		}, a.rosters, hist, a.logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "redu server %s starting on port %d\n", Version, servePort)
		fmt.Fprintf(os.Stderr, "  Data: %s\n", a.rosters.Root())
		fmt.Fprintf(os.Stderr, "  History: %s\n", database.Path())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all", false, "allow all CORS origins (development)")
	rootCmd.AddCommand(serveCmd)
}
