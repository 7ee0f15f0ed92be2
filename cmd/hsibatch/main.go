package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/gopjrt/dtypes"

	"hsibatch/pkg/batch"
	"hsibatch/pkg/config"
	"hsibatch/pkg/dataset"
	"hsibatch/pkg/envi"
	"hsibatch/pkg/logging"
	"hsibatch/pkg/tensorize"
	"hsibatch/pkg/visualization"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command and returns the process exit code. Failures are
// reported through the logging package so they reach the configured log
// file, and every deferred close runs before the code is returned.
func run(args []string, stdout io.Writer) int {
	// Parse command line arguments
	flags := flag.NewFlagSet("hsibatch", flag.ContinueOnError)
	configPath := flags.String("config", "hsibatch.yaml", "YAML configuration file")
	initConfig := flags.Bool("init-config", false, "Write a default configuration file and exit")
	mode := flags.String("mode", "", "Override batching mode (pointwise/2D or spatial/3D)")
	seed := flags.Uint64("seed", 0, "Override sampling seed (0 keeps the configured seed)")
	numCores := flags.Int("cores", 0, "Number of CPU cores used to read images (0 keeps the configured value)")
	previewStep := flags.Int("preview-step", 10, "Render every n-th band when a preview directory is configured")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logging.Errorf("Failed to write default config: %v", err)
			return 1
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", *configPath)
		return 0
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Errorf("Failed to load config: %v", err)
		return 1
	}
	if *mode != "" {
		cfg.Batching.Mode = *mode
	}
	if *seed != 0 {
		cfg.Batching.Seed = *seed
	}
	if *numCores != 0 {
		cfg.Batching.NumCores = *numCores
	}

	closer, err := cfg.Logging.SetLogger()
	if err != nil {
		logging.Errorf("Failed to set up logging: %v", err)
		return 1
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		logging.Errorf("Invalid config: %v", err)
		return 1
	}
	if len(cfg.Data.IDs) == 0 {
		logging.Errorf("No image ids configured in %s (data.ids)", *configPath)
		flags.Usage()
		return 1
	}

	batchMode, err := cfg.Mode()
	if err != nil {
		logging.Errorf("Invalid mode: %v", err)
		return 1
	}
	classMap, err := cfg.ClassMap()
	if err != nil {
		logging.Errorf("Invalid labels: %v", err)
		return 1
	}

	cubes, err := envi.NewReader(cfg.Data.CubeDir)
	if err != nil {
		logging.Errorf("Failed to open cube directory: %v", err)
		return 1
	}
	defer cubes.Close()
	labelMaps, err := envi.NewReader(cfg.Data.LabelDir)
	if err != nil {
		logging.Errorf("Failed to open label directory: %v", err)
		return 1
	}
	defer labelMaps.Close()

	manager, err := dataset.NewManager(&dataset.Params{
		PatchSize: cfg.Batching.PatchSize,
		BatchSize: cfg.Batching.BatchSize,
		Mode:      batchMode,
		ClassMap:  classMap,
		Sampler:   batch.NewSampler(cfg.Batching.Seed),
		NumCores:  cfg.Batching.NumCores,
	})
	if err != nil {
		logging.Errorf("Failed to create dataset manager: %v", err)
		return 1
	}

	startTime := time.Now()
	if err := manager.Load(cfg.Data.IDs, cubes, labelMaps); err != nil {
		logging.Errorf("Loading failed: %v", err)
		return 1
	}
	batches, err := manager.CreateBatches()
	if err != nil {
		logging.Errorf("Batching failed: %v", err)
		return 1
	}
	processingTime := time.Since(startTime)

	summary, err := manager.Summary()
	if err != nil {
		logging.Errorf("Summary failed: %v", err)
		return 1
	}
	fmt.Fprintln(stdout, "================================")
	fmt.Fprintln(stdout, "HYPERSPECTRAL STRATIFIED BATCHES")
	fmt.Fprintln(stdout, "================================")
	for _, img := range summary.Images {
		fmt.Fprintf(stdout, "- %s: %dx%d, %d labeled pixels, appended rows from %d\n",
			img.ID, img.Height, img.Width, img.Labeled, img.RowStart)
	}
	fmt.Fprintf(stdout, "\nSamples: %d\nClasses: %d\nBands: %d\n", summary.NumSamples, summary.NumClasses, summary.NumBands)
	fmt.Fprintf(stdout, "Mode: %s, batch size %d, patch size %d\n", batchMode, cfg.Batching.BatchSize, cfg.Batching.PatchSize)
	fmt.Fprintf(stdout, "Batches: %d (%d samples) in %.2f seconds\n",
		len(batches), batch.TotalSamples(batches), processingTime.Seconds())
	if n := len(batches); n > 0 && batches[n-1].Len() < cfg.Batching.BatchSize {
		fmt.Fprintf(stdout, "Final partial batch: %d samples\n", batches[n-1].Len())
	}

	inputs, targets, err := tensorize.All(batches, dtypes.Float32, dtypes.Int32)
	if err != nil {
		logging.Errorf("Tensor conversion failed: %v", err)
		return 1
	}
	if len(inputs) > 0 {
		fmt.Fprintf(stdout, "Tensor shapes: inputs %s, labels %s\n", inputs[0].Shape(), targets[0].Shape())
	}

	if cfg.Output.PreviewDir != "" {
		for _, img := range manager.Store().Images() {
			dir := filepath.Join(cfg.Output.PreviewDir, img.ID)
			viewer := visualization.NewViewer(img.RawCube, img.RawLabelMap)
			if err := viewer.SaveBandSequence(dir, *previewStep); err != nil {
				logging.Warningf("Failed to save previews for %s: %v", img.ID, err)
				continue
			}
			fmt.Fprintf(stdout, "Previews for %s saved to: %s\n", img.ID, dir)
		}
	}

	if cfg.Output.PlotFile != "" {
		if err := visualization.PlotComposition(batches, cfg.Output.PlotFile); err != nil {
			logging.Warningf("Failed to plot batch composition: %v", err)
		} else {
			fmt.Fprintf(stdout, "Batch composition chart saved to: %s\n", cfg.Output.PlotFile)
		}
	}
	return 0
}
