package usage

import (
	"net/url"
	"path"
	"strings"
)

// Fallback sizes in bytes, used when a transfer's length cannot be measured.
const (
	EstimateDocument   int64 = 50000
	EstimateScript     int64 = 100000
	EstimateStylesheet int64 = 30000
	EstimateImage      int64 = 150000
	EstimateFont       int64 = 80000
	EstimateXHR        int64 = 5000
	EstimateFetch      int64 = 5000
	EstimateOther      int64 = 10000
)

var categoryEstimates = map[Category]int64{
	Document:   EstimateDocument,
	Script:     EstimateScript,
	Stylesheet: EstimateStylesheet,
	Image:      EstimateImage,
	Font:       EstimateFont,
	XHR:        EstimateXHR,
	Fetch:      EstimateFetch,
	Other:      EstimateOther,
}

// EstimateSource records which rule produced a byte count.
type EstimateSource int

const (
	SourceMeasured EstimateSource = iota
	SourceExtension
	SourceCategory
)

func (s EstimateSource) String() string {
	switch s {
	case SourceMeasured:
		return "measured"
	case SourceExtension:
		return "extension"
	case SourceCategory:
		return "category"
	default:
		return "unknown"
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Estimate returns the fallback size for a transfer of unknown length.
// A recognizable file extension in rawURL overrides the declared category
// (images, then scripts, then stylesheets); otherwise the category default
// applies.
func Estimate(c Category, rawURL string) (int64, EstimateSource) {
	switch ext := urlExtension(rawURL); {
	case imageExtensions[ext]:
		return EstimateImage, SourceExtension
	case ext == ".js" || ext == ".mjs":
		return EstimateScript, SourceExtension
	case ext == ".css":
		return EstimateStylesheet, SourceExtension
	}

	if n, ok := categoryEstimates[c]; ok {
		return n, SourceCategory
	}
	return EstimateOther, SourceCategory
}

// urlExtension returns the lower-cased extension of the URL path, ignoring
// query string and fragment.
func urlExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(path.Ext(p))
}
