package envconfig

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

var (
	// Set via PYRAMIDKV_DEBUG in the environment
	Debug bool
	// Set via PYRAMIDKV_HOST in the environment
	Host string
	// Set via PYRAMIDKV_NUM_THREADS in the environment
	NumThreads int
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"PYRAMIDKV_DEBUG":       {"PYRAMIDKV_DEBUG", Debug, "Show additional debug information (e.g. PYRAMIDKV_DEBUG=1)"},
		"PYRAMIDKV_HOST":        {"PYRAMIDKV_HOST", Host, "Bind address for the debug server (default 127.0.0.1:11555)"},
		"PYRAMIDKV_NUM_THREADS": {"PYRAMIDKV_NUM_THREADS", NumThreads, "Number of worker goroutines for batch compression (default number of CPUs)"},
	}
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = false
	if debug := clean("PYRAMIDKV_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	Host = "127.0.0.1:11555"
	if host := clean("PYRAMIDKV_HOST"); host != "" {
		Host = host
	}

	NumThreads = runtime.NumCPU()
	if threads := clean("PYRAMIDKV_NUM_THREADS"); threads != "" {
		if n, err := strconv.Atoi(threads); err == nil && n > 0 {
			NumThreads = n
		}
	}
}
