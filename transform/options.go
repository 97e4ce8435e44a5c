package transform

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/meshc/ir"
)

// Options configures the localization pass.
type Options struct {
	// Selector decides which mappings are localized. nil means
	// DefaultSelector.
	Selector MappingSelector

	// Limits, if set, are the target device limits. Tasks whose
	// block-local storage or group width exceed them are reported as
	// warnings; the runtime owns the allocation.
	Limits *gputypes.Limits
}

// DefaultOptions returns the default selector and default WebGPU limits.
func DefaultOptions() Options {
	limits := gputypes.DefaultLimits()
	return Options{
		Selector: DefaultSelector(),
		Limits:   &limits,
	}
}

func (o Options) selector() MappingSelector {
	if o.Selector == nil {
		return DefaultSelector()
	}
	return o.Selector
}

func checkLimits(t *ir.Task, limits *gputypes.Limits) {
	if limits == nil {
		return
	}
	log := Logger()
	if limit := limits.MaxComputeWorkgroupStorageSize; limit != 0 && t.BLSSize > limit {
		log.Warn("block-local storage exceeds device limit",
			"task", t.Name, "bytes", t.BLSSize, "limit", limit)
	}
	if limit := limits.MaxComputeInvocationsPerWorkgroup; limit != 0 && t.BlockDim > limit {
		log.Warn("group width exceeds device limit",
			"task", t.Name, "block_dim", t.BlockDim, "limit", limit)
	}
}
