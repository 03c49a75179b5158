package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/camera"
	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/renderpass"
	"github.com/df07/go-progressive-renderpass/pkg/settings"
)

// envPrefix prefixes environment variables overriding flags
const envPrefix = "RENDERPASS"

const defaultCameraPath = "/cameras/main"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "renderpass",
		Short:         "Progressive render pass",
		SilenceUsage:  true,
		SilenceErrors: false,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			_ = cmd.Help()
		},
	}
	rootCmd.AddCommand(newRenderCmd())
	return rootCmd
}

func newRenderCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the demo scene to PNG products",
		Long: `Render the demo scene to completion and write the render products.

Products come from the experimental:renderSpec setting of the settings file.
Without a render spec a single color product is written to --output.`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(v.GetString("env-file"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("settings", "", "Path to a render settings file (YAML)")
	flags.String("output", filepath.Join("output", "render.png"), "Output path used when the settings define no render products")
	flags.Int("width", 400, "Image width")
	flags.Int("height", 225, "Image height")
	flags.String("integrator", "", "Integrator name (overrides the settings file)")
	flags.Int("samples", 0, "Samples per pixel (overrides the settings file)")
	flags.Int("max-passes", backend.DefaultConfig().MaxPasses, "Maximum number of progressive passes")
	flags.Int("workers", 0, "Number of parallel workers (0 = use CPU count)")
	flags.String("log-level", "info", "Log level (debug, info, warn)")
	flags.String("env-file", ".env", "Environment file loaded before flags are read")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}
	return cmd
}

// loadEnvFile loads path into the environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadSettings merges the settings file and the command line overrides
func loadSettings(v *viper.Viper, width, height int) (*settings.Store, error) {
	store := settings.NewStore()
	if path := v.GetString("settings"); path != "" {
		if err := store.MergeFile(path); err != nil {
			return nil, err
		}
	}

	overrides := map[string]any{}
	if name := v.GetString("integrator"); name != "" {
		overrides[settings.KeyIntegratorName] = name
	}
	if samples := v.GetInt("samples"); samples > 0 {
		overrides[settings.KeyConvergedSamplesPerPixel] = samples
	}

	spec, err := settings.DecodeRenderSpec(store)
	if err != nil {
		return nil, err
	}
	if len(spec.Products) == 0 {
		overrides[settings.KeyRenderSpec] = map[string]any{
			"camera": defaultCameraPath,
			"renderProducts": []any{
				map[string]any{
					"name":       "beauty",
					"path":       v.GetString("output"),
					"resolution": []int{width, height},
					"aovs":       []string{backend.AovColor},
				},
			},
		}
	}
	store.SetAll(overrides)
	return store, nil
}

// defaultCamera frames the demo scene
func defaultCamera(path string, aspect float64) *camera.Camera {
	return camera.LookAt(path, mgl64.Vec3{0, 1.8, 2.6}, mgl64.Vec3{0, 1, -3.3}, mgl64.Vec3{0, 1, 0}, 40, aspect)
}

func runRender(ctx context.Context, v *viper.Viper) error {
	logger := core.NewLogger(v.GetString("log-level"))

	width, height := v.GetInt("width"), v.GetInt("height")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", width, height)
	}

	store, err := loadSettings(v, width, height)
	if err != nil {
		return err
	}
	spec, err := settings.DecodeRenderSpec(store)
	if err != nil {
		return err
	}
	cameras := camera.NewRegistry()
	cameraPath := spec.Camera
	if cameraPath == "" {
		cameraPath = defaultCameraPath
	}
	cameras.Set(defaultCamera(cameraPath, float64(width)/float64(height)))

	config := backend.DefaultConfig()
	config.Interactive = false
	config.MaxPasses = v.GetInt("max-passes")
	config.NumWorkers = v.GetInt("workers")
	session := backend.NewProgressive(backend.NewDefaultScene(), config, logger)
	defer session.Close()

	pass := renderpass.New(session, store, cameras, nil, renderpass.Config{}, renderpass.WithLogger(logger))
	defer pass.Close()

	logger.Printf("Rendering %dx%d with %s...\n", width, height,
		settings.String(store, settings.KeyIntegratorName, settings.DefaultIntegrator))

	startTime := time.Now()
	state := &renderpass.PassState{
		CameraPath: cameraPath,
		Framing:    camera.NewFraming(image.Rect(0, 0, width, height)),
	}
	if err := pass.Execute(ctx, state); err != nil {
		return err
	}

	progress := session.Progress()
	logger.Printf("Render completed in %v\n", time.Since(startTime))
	logger.Printf("Samples per pixel: %.1f (range %d - %d)\n",
		progress.Stats.AverageSamples, progress.Stats.MinSamples, progress.Stats.MaxSamplesUsed)
	return nil
}
