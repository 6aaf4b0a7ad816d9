package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmorganca/pyramidkv/envconfig"
	"github.com/jmorganca/pyramidkv/kvcache"
	"github.com/jmorganca/pyramidkv/version"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pyramidkv",
		Short: "KV cache compression toolkit",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true

			level := slog.LevelInfo
			if envconfig.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pyramidkv version", version.Version)
		},
	}

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewScheduleCmd(),
		NewGenerateCmd(),
		NewCompressCmd(),
		NewBenchCmd(),
		NewServeCmd(),
		versionCmd,
	)

	return rootCmd
}

// addConfigFlags registers the engine configuration flags shared by the
// schedule, compress and bench commands.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().Int("layers", 32, "Number of hidden layers in the network")
	cmd.Flags().Int("window", 64, "Trailing window size kept verbatim")
	cmd.Flags().Int("capacity", 320, "Total retention budget per layer, window included")
	cmd.Flags().Int("kernel", 5, "Pooling kernel size (odd)")
	cmd.Flags().String("pooling", string(kvcache.PoolingAvg), "Score pooling: avgpool or maxpool")
	cmd.Flags().Int("beta", 20, "Pyramid spread ratio")
	cmd.Flags().Int("n-rep", 1, "Query heads per key/value head (grouped-query attention)")
}

func configFromFlags(cmd *cobra.Command) (kvcache.Config, error) {
	layers, _ := cmd.Flags().GetInt("layers")
	window, _ := cmd.Flags().GetInt("window")
	capacity, _ := cmd.Flags().GetInt("capacity")
	kernel, _ := cmd.Flags().GetInt("kernel")
	pooling, _ := cmd.Flags().GetString("pooling")
	beta, _ := cmd.Flags().GetInt("beta")
	nRep, _ := cmd.Flags().GetInt("n-rep")

	config := kvcache.Config{
		NumHiddenLayers:   layers,
		WindowSize:        window,
		MaxCapacityPrompt: capacity,
		KernelSize:        kernel,
		Pooling:           kvcache.Pooling(pooling),
		Beta:              beta,
		NRep:              nRep,
	}

	if _, err := kvcache.NewCompressor(config); err != nil {
		return kvcache.Config{}, err
	}

	return config, nil
}
