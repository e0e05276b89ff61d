package usage

import (
	"fmt"
	"strings"
)

// Category is the resource type of an observed transfer.
type Category string

const (
	Document   Category = "document"
	Script     Category = "script"
	Stylesheet Category = "stylesheet"
	Image      Category = "image"
	Font       Category = "font"
	XHR        Category = "xhr"
	Fetch      Category = "fetch"
	Other      Category = "other"
)

// ParseCategory maps a resource-type string (as reported by browsers and
// devtools protocols) to a Category. Unrecognized values map to Other.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Document, Script, Stylesheet, Image, Font, XHR, Fetch:
		return c
	case "css":
		return Stylesheet
	case "js", "javascript":
		return Script
	case "img":
		return Image
	default:
		return Other
	}
}

// Bucket returns the breakdown bucket the category accumulates into.
// Fonts and xhr/fetch traffic are accounted as Other.
func (c Category) Bucket() Category {
	switch c {
	case Document, Script, Stylesheet, Image:
		return c
	default:
		return Other
	}
}

// Breakdown holds per-bucket byte counters.
type Breakdown struct {
	Document   uint64 `json:"document" yaml:"document"`
	Script     uint64 `json:"script" yaml:"script"`
	Stylesheet uint64 `json:"stylesheet" yaml:"stylesheet"`
	Image      uint64 `json:"image" yaml:"image"`
	Other      uint64 `json:"other" yaml:"other"`
}

// Add accumulates n bytes into the bucket for c.
func (b *Breakdown) Add(c Category, n uint64) {
	switch c.Bucket() {
	case Document:
		b.Document += n
	case Script:
		b.Script += n
	case Stylesheet:
		b.Stylesheet += n
	case Image:
		b.Image += n
	default:
		b.Other += n
	}
}

// Sum returns the total across all buckets.
func (b Breakdown) Sum() uint64 {
	return b.Document + b.Script + b.Stylesheet + b.Image + b.Other
}

// Record is the usage telemetry of one session. It is produced once by a
// Recorder and must not be modified after it is handed to an aggregator.
type Record struct {
	TotalBytes      uint64    `json:"total_bytes" yaml:"total_bytes"`
	RequestCount    uint32    `json:"request_count" yaml:"request_count"`
	ResponseCount   uint32    `json:"response_count" yaml:"response_count"`
	Breakdown       Breakdown `json:"breakdown" yaml:"breakdown"`
	DurationSeconds uint32    `json:"duration_seconds" yaml:"duration_seconds"`
}

// Validate checks that TotalBytes agrees with the breakdown. The breakdown
// is authoritative; records built by a Recorder always pass.
func (r Record) Validate() error {
	if sum := r.Breakdown.Sum(); sum != r.TotalBytes {
		return fmt.Errorf("usage: total bytes %d does not match breakdown sum %d", r.TotalBytes, sum)
	}
	return nil
}
