package kvcache

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jmorganca/pyramidkv/ml"
)

// windowAttention scores every historical position by the softmax mass the
// trailing windowSize query rows place on it. key must already be expanded to
// one head per query head (see ml.Tensor.Repeat). The result is indexed
// [batch][head][position] over the qLen-windowSize historical positions.
//
// Masking follows prefill attention: a window row sees all of history plus
// the window rows at or before it. Scores are scaled by 1/sqrt(headDim) and
// each row is normalized with a max-subtracted softmax before summing.
//
// Batches and heads are independent, so the work fans out across goroutines.
// This is purely a throughput choice; per-row reductions stay sequential.
func windowAttention(query, key *ml.Tensor, windowSize int) [][][]float32 {
	batch, heads := query.Batch(), query.Heads()
	qLen := key.Seq()
	history := qLen - windowSize
	scale := 1 / math.Sqrt(float64(query.HeadDim()))

	mass := make([][][]float32, batch)
	for b := range mass {
		mass[b] = make([][]float32, heads)
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for b := range batch {
		for h := range heads {
			g.Go(func() error {
				sum := make([]float32, history)
				row := make([]float64, qLen)

				for w := range windowSize {
					// Global position of this window row. Later window
					// positions are masked out, history never is.
					pos := history + w
					visible := pos + 1

					qRow := query.Row(b, h, query.Seq()-windowSize+w)
					for j := range visible {
						kRow := key.Row(b, h, j)

						var dot float64
						for d := range qRow {
							dot += float64(qRow[d]) * float64(kRow[d])
						}
						row[j] = dot * scale
					}

					rowMax := math.Inf(-1)
					for _, v := range row[:visible] {
						if v > rowMax {
							rowMax = v
						}
					}

					var denom float64
					for j := range visible {
						row[j] = math.Exp(row[j] - rowMax)
						denom += row[j]
					}

					for j := range history {
						sum[j] += float32(row[j] / denom)
					}
				}

				mass[b][h] = sum
				return nil
			})
		}
	}

	g.Wait()

	return mass
}
