package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/moodmix/internal/server"
	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve hosts the recommender over HTTP until interrupted.
//
// One recommender and token cache are shared by every request.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	recommender, err := r.services()
	if err != nil {
		return err
	}

	config := r.cfg()
	host, port := config.Server.Host, config.Server.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(recommender, server.Options{
		Host:   host,
		Port:   port,
		Logger: shared.WithLogger(r.logger, "component", "server"),
	})
	r.logger.Info("serving recommendations", "addr", srv.Addr())
	return srv.ListenAndServe(ctx)
}
