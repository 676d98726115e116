package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/controller"
	"github.com/ShubAce/ConvoTrack-Assigment/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "convotrack",
		Short:        "Question answering over ConvoTrack business case studies",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Setup(cfg.Log)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newIndexCmd(load), newAskCmd(load))
	return root
}

type configLoader func() (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build the index if needed and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = log.Logger.WithContext(ctx)

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// The server answers /health with 503 until startup finishes.
			go func() {
				if err := a.rag.Startup(ctx); err != nil {
					log.Error().Err(err).Msg("MAIN: startup failed, questions will be refused")
				}
			}()

			gin.SetMode(gin.ReleaseMode)
			router := controller.NewRouter(cfg.Server, controller.NewRAGController(a.rag), a.metrics)
			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Bool("admin", cfg.Server.EnableAdmin).Msg("MAIN: HTTP server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("MAIN: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newIndexCmd(load configLoader) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index from the corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := log.Logger.WithContext(cmd.Context())
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if force {
				stats, err := a.rag.Rebuild(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			}
			if err := a.rag.Startup(ctx); err != nil {
				return err
			}
			return printJSON(cmd, a.rag.Health(ctx))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild even when the index already has entries")
	return cmd
}

func newAskCmd(load configLoader) *cobra.Command {
	var analysisType string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := log.Logger.WithContext(cmd.Context())
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.rag.Startup(ctx); err != nil {
				return err
			}
			answer, err := a.rag.AskWithMode(ctx, args[0], analysisType)
			if err != nil {
				return err
			}
			cmd.Println(answer.Answer)
			cmd.Println()
			for i, s := range answer.Sources {
				ref := s.URL
				if ref == "" {
					ref = "article " + s.ArticleNumber
				}
				cmd.Printf("[%d] %s (%.2f)\n", i+1, ref, s.Score)
			}
			cmd.Printf("\nconfidence: %s, analysis: %s\n", answer.Confidence, answer.AnalysisType)
			return nil
		},
	}
	cmd.Flags().StringVarP(&analysisType, "type", "t", "", "analysis type to use instead of routing (general, strategic, trends, comparative, executive)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
