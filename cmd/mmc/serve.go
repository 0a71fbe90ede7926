package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpapp "github.com/adamjohnlea/my-music-collection-sub000/internal/http"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator routes and the background push/image worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.Logger

		if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
			imageBatch, _ := cmd.Flags().GetInt("images")
			w := worker.NewWorker(a.Config.WorkerInterval, log,
				worker.Task{Name: "push", Run: func(ctx context.Context) error {
					_, err := a.Push.RunBatch(ctx)
					return err
				}},
				worker.Task{Name: "images", Run: func(ctx context.Context) error {
					_, err := a.Images.FetchPending(ctx, imageBatch)
					return err
				}},
			)
			w.Start()
			defer w.Stop()
		}

		srv := &http.Server{
			Addr:              ":" + a.Config.Port,
			Handler:           httpapp.NewRouter(httpapp.NewHandler(a)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("Server exiting")
		return nil
	},
}
