package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorganca/pyramidkv/fixture"
	"github.com/jmorganca/pyramidkv/kvcache"
	"github.com/jmorganca/pyramidkv/ml"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestVersionRoute(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)

	GenerateRoutes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "version")
}

func TestScheduleRoute(t *testing.T) {
	body, err := json.Marshal(ScheduleRequest{
		NumHiddenLayers:   4,
		WindowSize:        64,
		MaxCapacityPrompt: 320,
		Beta:              20,
		QLen:              600,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewReader(body))

	GenerateRoutes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var plan kvcache.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	assert.Equal(t, "aggressive", plan.Regime)
	require.Len(t, plan.Layers, 4)
	assert.Equal(t, 564, plan.Layers[0].Retained)
	assert.Equal(t, 78, plan.Layers[3].Retained)
}

func TestScheduleRouteInvalidConfig(t *testing.T) {
	body, err := json.Marshal(ScheduleRequest{
		NumHiddenLayers:   4,
		WindowSize:        64,
		MaxCapacityPrompt: 64,
		QLen:              600,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewReader(body))

	GenerateRoutes().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompressRoute(t *testing.T) {
	tensors := map[string]*ml.Tensor{}
	for _, name := range []string{"key", "query", "value"} {
		t32 := ml.Zeros(1, 1, 200, 4)
		data := t32.Floats()
		for i := range data {
			data[i] = float32(i%11) * 0.1
		}
		tensors[name] = t32
	}

	var body bytes.Buffer
	require.NoError(t, fixture.Encode(&body, tensors, fixture.DTypeF32))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/api/compress?num_hidden_layers=4&window_size=16&max_capacity_prompt=96&layer_idx=0", &body)

	GenerateRoutes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	out, err := fixture.Decode(w.Body)
	require.NoError(t, err)
	require.NotNil(t, out["key"])
	require.NotNil(t, out["value"])

	// q_len 200 >= 2*(96-16): aggressive regime, output within budget.
	assert.LessOrEqual(t, out["key"].Seq(), 200)
	assert.Equal(t, out["key"].Seq(), out["value"].Seq())
}

func TestCompressRouteMissingTensor(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, fixture.Encode(&body, map[string]*ml.Tensor{"key": ml.Zeros(1, 1, 4, 2)}, fixture.DTypeF32))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/api/compress?num_hidden_layers=4&window_size=16&max_capacity_prompt=96", &body)

	GenerateRoutes().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
