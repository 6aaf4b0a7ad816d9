// Package server exposes the compression engine over HTTP for debugging and
// offline experiments. It is not part of the core call contract; the engine
// itself is a plain library call.
package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jmorganca/pyramidkv/fixture"
	"github.com/jmorganca/pyramidkv/kvcache"
	"github.com/jmorganca/pyramidkv/ml"
	"github.com/jmorganca/pyramidkv/version"
)

type ScheduleRequest struct {
	NumHiddenLayers   int    `json:"num_hidden_layers" form:"num_hidden_layers"`
	WindowSize        int    `json:"window_size" form:"window_size"`
	MaxCapacityPrompt int    `json:"max_capacity_prompt" form:"max_capacity_prompt"`
	KernelSize        int    `json:"kernel_size" form:"kernel_size"`
	Pooling           string `json:"pooling" form:"pooling"`
	Beta              int    `json:"beta" form:"beta"`
	NRep              int    `json:"n_rep" form:"n_rep"`
	QLen              int    `json:"q_len" form:"q_len"`
	CapacityOverride  int    `json:"capacity_override" form:"capacity_override"`
}

func (req ScheduleRequest) config() kvcache.Config {
	pooling := kvcache.Pooling(req.Pooling)
	if req.Pooling == "" {
		pooling = kvcache.PoolingAvg
	}

	kernelSize := req.KernelSize
	if kernelSize == 0 {
		kernelSize = 5
	}

	beta := req.Beta
	if beta == 0 {
		beta = 20
	}

	return kvcache.Config{
		NumHiddenLayers:   req.NumHiddenLayers,
		WindowSize:        req.WindowSize,
		MaxCapacityPrompt: req.MaxCapacityPrompt,
		KernelSize:        kernelSize,
		Pooling:           pooling,
		Beta:              beta,
		NRep:              req.NRep,
	}
}

type CompressRequest struct {
	ScheduleRequest
	LayerIdx int `form:"layer_idx" json:"layer_idx"`
}

func GenerateRoutes() *gin.Engine {
	r := gin.Default()

	r.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.Version})
	})

	r.POST("/api/schedule", func(c *gin.Context) {
		var req ScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		compressor, err := kvcache.NewCompressor(req.config())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, compressor.Config().Plan(req.QLen, req.CapacityOverride))
	})

	// Body is a cbor tensor dump holding "key", "query" and "value"; the
	// response is a dump holding the compressed "key" and "value".
	r.POST("/api/compress", func(c *gin.Context) {
		id := uuid.New().String()
		start := time.Now()

		var req CompressRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		config := req.config()
		config.LayerIdx = req.LayerIdx

		compressor, err := kvcache.NewCompressor(config)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		tensors, err := fixture.Decode(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		key, query, value := tensors["key"], tensors["query"], tensors["value"]
		if key == nil || query == nil || value == nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "dump must contain key, query and value tensors"})
			return
		}

		keyOut, valueOut, err := compressor.UpdateKV(key, query, value, nil, max(req.NRep, 1), req.CapacityOverride)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		slog.Info("compress", "id", id, "layer", req.LayerIdx, "q_len", key.Seq(), "retained", keyOut.Seq(), "duration", time.Since(start))

		c.Header("Content-Type", "application/cbor")
		c.Status(http.StatusOK)

		out := map[string]*ml.Tensor{"key": keyOut, "value": valueOut}
		if err := fixture.Encode(c.Writer, out, fixture.DTypeF32); err != nil {
			slog.Error("compress response write failed", "id", id, "error", err)
		}
	})

	return r
}

// Serve runs the debug API on the listener until it fails.
func Serve(ln net.Listener) error {
	r := GenerateRoutes()

	slog.Info("listening", "addr", ln.Addr())

	return r.RunListener(ln)
}
