package cmd

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmorganca/pyramidkv/envconfig"
	"github.com/jmorganca/pyramidkv/fixture"
	"github.com/jmorganca/pyramidkv/format"
	"github.com/jmorganca/pyramidkv/kvcache"
	"github.com/jmorganca/pyramidkv/ml"
)

func NewCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress DUMP",
		Short: "Compress a KV dump across every layer and report savings",
		Args:  cobra.ExactArgs(1),
		RunE:  compressHandler,
	}

	addConfigFlags(cmd)
	cmd.Flags().Int("capacity-override", 0, "Replace the configured capacity for this run")

	return cmd
}

func compressHandler(cmd *cobra.Command, args []string) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	override, _ := cmd.Flags().GetInt("capacity-override")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	tensors, err := fixture.Decode(f)
	if err != nil {
		return err
	}

	key, query, value := tensors["key"], tensors["query"], tensors["value"]
	if key == nil || query == nil || value == nil {
		return fmt.Errorf("dump must contain key, query and value tensors")
	}

	// Every layer sees the same prefill in this offline run; what changes
	// per layer is the pyramid budget.
	retained := make([]int, config.NumHiddenLayers)

	var mu sync.Mutex
	var inBytes, outBytes int64

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

			keyOut, valueOut, err := compressor.UpdateKV(key, query, value, nil, max(config.NRep, 1), override)
			if err != nil {
				return fmt.Errorf("layer %d: %w", layer, err)
			}

			retained[layer] = keyOut.Seq()

			mu.Lock()
			inBytes += tensorBytes(key) + tensorBytes(value)
			outBytes += tensorBytes(keyOut) + tensorBytes(valueOut)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var data [][]string
	for layer, n := range retained {
		data = append(data, []string{
			strconv.Itoa(layer),
			strconv.Itoa(key.Seq()),
			strconv.Itoa(n),
			fmt.Sprintf("%.1f%%", 100*float64(n)/float64(key.Seq())),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"LAYER", "IN", "OUT", "KEPT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Printf("\ncache: %s -> %s\n", format.HumanBytes(inBytes), format.HumanBytes(outBytes))

	return nil
}

func tensorBytes(t *ml.Tensor) int64 {
	return int64(t.Batch()) * int64(t.Heads()) * int64(t.Seq()) * int64(t.HeadDim()) * 4
}
