package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// SceneSelect keeps only frames whose scene score exceeds threshold
func (fb *FilterBuilder) SceneSelect(threshold float64) *FilterBuilder {
	if threshold <= 0 || threshold >= 1 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("select='gt(scene,%f)'", threshold))
	return fb
}

// ShowInfo logs one line per frame, including pts_time
func (fb *FilterBuilder) ShowInfo() *FilterBuilder {
	fb.filters = append(fb.filters, "showinfo")
	return fb
}

// AudioWindow regroups audio into frames of exactly samples samples
func (fb *FilterBuilder) AudioWindow(samples int) *FilterBuilder {
	if samples <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("asetnsamples=n=%d:p=0", samples))
	return fb
}

// AudioStats attaches per-frame astats measurements as frame metadata
func (fb *FilterBuilder) AudioStats() *FilterBuilder {
	fb.filters = append(fb.filters, "astats=metadata=1:reset=1")
	return fb
}

// PrintMetadata logs the given frame metadata key for every frame
func (fb *FilterBuilder) PrintMetadata(key string) *FilterBuilder {
	if key == "" {
		return fb
	}
	fb.filters = append(fb.filters, "ametadata=mode=print:key="+key)
	return fb
}

// VolumeDetect adds the volumedetect summary filter
func (fb *FilterBuilder) VolumeDetect() *FilterBuilder {
	fb.filters = append(fb.filters, "volumedetect")
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}
