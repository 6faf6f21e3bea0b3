package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"miro_ideation_relay/board"
	"miro_ideation_relay/cache"
	"miro_ideation_relay/config"
	"miro_ideation_relay/generator"
	"miro_ideation_relay/logging"
	"miro_ideation_relay/pipeline"
	"miro_ideation_relay/publisher"
	"miro_ideation_relay/server"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "miro-relay",
	Short:         "Whiteboard ideation relay",
	Long:          "Reads sticky notes from a whiteboard, asks a language model for ideas and images, and writes images back to the board.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to a dotenv file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")
	rootCmd.AddCommand(serveCmd(), ideateCmd(), sketchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(a.pipeline, a.logger)
			if err != nil {
				return err
			}
			listen := a.cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			hs := srv.HTTPServer(listen)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() {
				a.logger.Warnf("starting web server on %s (text model %s, image model %s)",
					listen, a.cfg.LLM.TextModel, a.cfg.LLM.ImageModel)
				errc <- hs.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			a.logger.Warnf("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config server_addr and PORT)")
	return cmd
}

func ideateCmd() *cobra.Command {
	var content, prompt string
	cmd := &cobra.Command{
		Use:   "ideate",
		Short: "Print ideas for one sticky note",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Ideate(cmd.Context(), pipeline.IdeateRequest{Content: content, Prompt: prompt})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, idea := range res.Ideas {
				fmt.Fprintf(out, "Idea %d: %s\n", i+1, idea)
			}
			if len(res.Ideas) == 0 {
				fmt.Fprintln(out, res.Suggestions)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "sticky note text")
	cmd.Flags().StringVar(&prompt, "prompt", "", "optional extra context")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func sketchCmd() *cobra.Command {
	var content, outDir string
	cmd := &cobra.Command{
		Use:   "sketch",
		Short: "Generate a brainstorming sketch and write it as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Sketches(cmd.Context(), pipeline.ImageRequest{
				Content: content,
				// no board is read for free content
				BoardID: "local",
			})
			if err != nil {
				return err
			}
			if res.Count == 0 {
				return fmt.Errorf("no image generated (status %s)", res.Status)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, img := range res.Images {
				path := filepath.Join(outDir, img.ID+".png")
				if err := writeBase64(path, img.Base64Image); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "theme to illustrate")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for generated images")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

// app is the wired service shared by all commands.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	pipeline *pipeline.Pipeline
	closer   io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, closer := logging.NewWithFile(cfg.LogFile, cfg.Verbose)

	llm, err := buildLLM(cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}
	agent, err := generator.NewAgent(llm, generator.Models{
		TextModel:    cfg.LLM.TextModel,
		ImageModel:   cfg.LLM.ImageModel,
		ImageSize:    cfg.LLM.ImageSize,
		ImageQuality: cfg.LLM.ImageQuality,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
	})
	if err != nil {
		closer.Close()
		return nil, err
	}

	if cfg.Board.Token == "" {
		logger.Warnf("MIRO_TOKEN is not set; board reads and writes will be rejected")
	}
	boardClient := board.NewClient(cfg.Board.BaseURL, cfg.Board.Token, logger)
	pub, err := publisher.New(boardClient, cfg.PublishAttempts, cfg.PublishRetryDelay, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	p, err := pipeline.New(pipeline.Deps{
		Resolver:       board.NewResolver(boardClient, logger),
		Generator:      agent,
		Publisher:      pub,
		Cache:          cache.NewMemory(cfg.CacheTTL),
		DefaultBoardID: cfg.Board.DefaultBoardID,
		Logger:         logger,
	})
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, pipeline: p, closer: closer}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

func buildLLM(cfg config.Config) (generator.Client, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case config.ProviderOpenAI:
		return generator.NewOpenAIClientFromConfig(&generator.LLMSettings{
			Provider:        cfg.LLM.Provider,
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			TextTimeout:     cfg.LLM.TextTimeout,
			ImageTimeout:    cfg.LLM.ImageTimeout,
			DownloadTimeout: cfg.LLM.DownloadTimeout,
		})
	case config.ProviderMock:
		return generator.MockClient{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func writeBase64(path, b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode image %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
