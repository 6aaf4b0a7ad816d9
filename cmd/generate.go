package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmorganca/pyramidkv/fixture"
	"github.com/jmorganca/pyramidkv/ml"
)

func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate DEST",
		Short: "Write a synthetic KV dump for testing",
		Args:  cobra.ExactArgs(1),
		RunE:  generateHandler,
	}

	cmd.Flags().Int("batch", 1, "Batch size")
	cmd.Flags().Int("heads", 8, "Number of query heads")
	cmd.Flags().Int("n-rep", 1, "Query heads per key/value head")
	cmd.Flags().Int("seq", 1024, "Sequence length")
	cmd.Flags().Int("head-dim", 64, "Head dimension")
	cmd.Flags().Int64("seed", 0, "Random seed")
	cmd.Flags().String("dtype", fixture.DTypeF16, "Storage type: F32, F16 or BF16")

	return cmd
}

func generateHandler(cmd *cobra.Command, args []string) error {
	batch, _ := cmd.Flags().GetInt("batch")
	heads, _ := cmd.Flags().GetInt("heads")
	nRep, _ := cmd.Flags().GetInt("n-rep")
	seqLen, _ := cmd.Flags().GetInt("seq")
	headDim, _ := cmd.Flags().GetInt("head-dim")
	seed, _ := cmd.Flags().GetInt64("seed")
	dtype, _ := cmd.Flags().GetString("dtype")

	if nRep < 1 || heads%nRep != 0 {
		return fmt.Errorf("heads (%d) must be a multiple of n-rep (%d)", heads, nRep)
	}
	kvHeads := heads / nRep

	tensors := make(map[string]*ml.Tensor, 3)
	for i, tt := range []struct {
		name  string
		heads int
	}{
		{"query", heads},
		{"key", kvHeads},
		{"value", kvHeads},
	} {
		t, err := fixture.Synthetic(batch, tt.heads, seqLen, headDim, seed+int64(i))
		if err != nil {
			return err
		}
		tensors[tt.name] = t
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fixture.Encode(f, tensors, dtype); err != nil {
		return err
	}

	fmt.Printf("wrote %s (batch %d, heads %d, kv heads %d, seq %d, dim %d, %s)\n",
		args[0], batch, heads, kvHeads, seqLen, headDim, dtype)

	return nil
}
