package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmorganca/pyramidkv/envconfig"
	"github.com/jmorganca/pyramidkv/fixture"
	"github.com/jmorganca/pyramidkv/format"
	"github.com/jmorganca/pyramidkv/kvcache"
)

func NewBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time compression of a synthetic prefill across all layers",
		RunE:  benchHandler,
	}

	addConfigFlags(cmd)
	cmd.Flags().Int("heads", 8, "Number of query heads")
	cmd.Flags().Int("seq", 2048, "Prefill sequence length")
	cmd.Flags().Int("head-dim", 64, "Head dimension")

	return cmd
}

func benchHandler(cmd *cobra.Command, args []string) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	heads, _ := cmd.Flags().GetInt("heads")
	seqLen, _ := cmd.Flags().GetInt("seq")
	headDim, _ := cmd.Flags().GetInt("head-dim")

	nRep := max(config.NRep, 1)
	if heads%nRep != 0 {
		return fmt.Errorf("heads (%d) must be a multiple of n-rep (%d)", heads, nRep)
	}

	query, err := fixture.Synthetic(1, heads, seqLen, headDim, 0)
	if err != nil {
		return err
	}

	key, err := fixture.Synthetic(1, heads/nRep, seqLen, headDim, 1)
	if err != nil {
		return err
	}

	value, err := fixture.Synthetic(1, heads/nRep, seqLen, headDim, 2)
	if err != nil {
		return err
	}

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(envconfig.NumThreads)

	for layer := range config.NumHiddenLayers {
		g.Go(func() error {
			layerConfig := config
			layerConfig.LayerIdx = layer

			compressor, err := kvcache.NewCompressor(layerConfig)
			if err != nil {
				return err
			}

			_, _, err = compressor.UpdateKV(key, query, value, nil, nRep, 0)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)

	fmt.Printf("%d layers, %s positions each: %v (%v per layer, %d workers)\n",
		config.NumHiddenLayers,
		format.HumanNumber(uint64(seqLen)),
		elapsed.Round(time.Millisecond),
		(elapsed / time.Duration(config.NumHiddenLayers)).Round(time.Microsecond),
		envconfig.NumThreads)

	return nil
}
