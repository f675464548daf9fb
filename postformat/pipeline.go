package postformat

import (
	"go.uber.org/zap"

	"critcss/css"
)

// Options of the post-formatting pipeline.
type Options struct {
	// nil means DefaultPropertiesToRemove
	PropertiesToRemove []string
	// negative value keeps all embedded data
	MaxEmbeddedBase64Length int
}

// DefaultOptions returns options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PropertiesToRemove:      DefaultPropertiesToRemove,
		MaxEmbeddedBase64Length: DefaultMaxEmbeddedBase64Length,
	}
}

// Apply runs all transforms. Removal of unused @font-face and @keyframes
// goes last since stripping may remove their only references.
func Apply(nodes []css.Node, opts Options, log *zap.Logger) ([]css.Node, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("postformat")

	props := opts.PropertiesToRemove
	if props == nil {
		props = DefaultPropertiesToRemove
	}
	patterns, err := CompilePatterns(props)
	if err != nil {
		return nil, err
	}

	before := countNodes(nodes)
	nodes = RemoveProperties(nodes, patterns)
	nodes = RemoveEmbeddedData(nodes, opts.MaxEmbeddedBase64Length)
	nodes = RemoveUnusedFontFaces(nodes)
	nodes = RemoveUnusedKeyframes(nodes)

	log.Debug("Post-formatting done", zap.Int("nodes.before", before), zap.Int("nodes.after", countNodes(nodes)))
	return nodes, nil
}

func countNodes(nodes []css.Node) int {
	count := 0
	css.Walk(nodes, func(css.Node) bool {
		count++
		return true
	})
	return count
}
