package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/renderpass"
	"github.com/df07/go-progressive-renderpass/pkg/settings"
	"github.com/df07/go-progressive-renderpass/web/server"
)

// envPrefix prefixes environment variables overriding flags
const envPrefix = "RENDERPASS"

func main() {
	if err := newServeCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := server.DefaultConfig()
	cmd := &cobra.Command{
		Use:          "renderpass-web",
		Short:        "Interactive progressive render server",
		SilenceUsage: true,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			path := v.GetString("env-file")
			if path == "" {
				return nil
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil
			}
			return godotenv.Load(path)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", defaults.Port, "Port to serve on")
	flags.Int("width", defaults.Width, "Image width")
	flags.Int("height", defaults.Height, "Image height")
	flags.Int("fps", defaults.FPS, "Render pass refresh rate")
	flags.Duration("frame-interval", defaults.FrameInterval, "Time between two streamed frames")
	flags.Bool("quick-integrate", defaults.Pass.EnableQuickIntegrate, "Start interactive renders with the quick integrator")
	flags.Int("tile-size", defaults.Backend.TileSize, "Size of each render tile")
	flags.Int("max-passes", defaults.Backend.MaxPasses, "Maximum number of progressive passes")
	flags.Int("workers", defaults.Backend.NumWorkers, "Number of parallel workers (0 = use CPU count)")
	flags.String("settings", "", "Path to a render settings file (YAML)")
	flags.String("log-level", "info", "Log level (debug, info, warn)")
	flags.String("env-file", ".env", "Environment file loaded before flags are read")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	logger := core.NewLogger(v.GetString("log-level"))

	store := settings.NewStore()
	if path := v.GetString("settings"); path != "" {
		if err := store.MergeFile(path); err != nil {
			return err
		}
	}

	config := server.DefaultConfig()
	config.Port = v.GetInt("port")
	config.Width = v.GetInt("width")
	config.Height = v.GetInt("height")
	config.FPS = v.GetInt("fps")
	config.FrameInterval = v.GetDuration("frame-interval")
	config.Pass = renderpass.Config{EnableQuickIntegrate: v.GetBool("quick-integrate")}
	config.Backend.TileSize = v.GetInt("tile-size")
	config.Backend.MaxPasses = v.GetInt("max-passes")
	config.Backend.NumWorkers = v.GetInt("workers")

	webServer, err := server.NewServer(config, store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("Progressive render pass web server (session %s)\n", webServer.SessionID())
	logger.Printf("Visit http://localhost:%d/api/render to stream the render\n", config.Port)

	err = webServer.Start(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if closeErr := webServer.Close(closeCtx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
