package css

import (
	"critcss/common"
)

// Class selects retention policy for a node during critical CSS selection.
type Class int

const (
	// ClassRule is a plain style rule, judged selector by selector.
	ClassRule Class = iota
	// ClassOpaque at-rules carry no selectors and are kept verbatim
	// (@charset, @import, @namespace and anything unknown).
	ClassOpaque
	// ClassDeclarations at-rules are kept by selection and may be removed
	// later by reference checks (@font-face, @keyframes).
	ClassDeclarations
	// ClassDropped at-rules never affect above the fold rendering (@page).
	ClassDropped
	// ClassContainer at-rules hold nested rules which are judged recursively
	// (@media, @supports, @document).
	ClassContainer
	// ClassFilteredContainer is @media which can not match the viewport,
	// dropped without looking inside.
	ClassFilteredContainer
)

func (c Class) String() string {
	switch c {
	case ClassRule:
		return "rule"
	case ClassOpaque:
		return "opaque"
	case ClassDeclarations:
		return "declarations"
	case ClassDropped:
		return "dropped"
	case ClassContainer:
		return "container"
	case ClassFilteredContainer:
		return "filtered-container"
	}
	return "unknown"
}

var (
	// at-rules parser reads as declaration lists
	declarationBlocks = map[string]bool{
		"font-face": true,
		"page":      true,
	}
	// at-rules parser reads as rule lists
	ruleBlocks = map[string]bool{
		"media":     true,
		"supports":  true,
		"document":  true,
		"keyframes": true,
	}

	atRuleClasses = map[string]Class{
		"charset":   ClassOpaque,
		"import":    ClassOpaque,
		"namespace": ClassOpaque,
		"font-face": ClassDeclarations,
		"keyframes": ClassDeclarations,
		"page":      ClassDropped,
		"media":     ClassContainer,
		"supports":  ClassContainer,
		"document":  ClassContainer,
	}
)

// Classify returns class of the node without looking at media conditions,
// so @media is always ClassContainer here.
func Classify(n Node) Class {
	if n.Rule != nil {
		return ClassRule
	}
	if n.AtRule == nil {
		return ClassOpaque
	}
	class, ok := atRuleClasses[n.AtRule.BaseName()]
	if !ok {
		// conservative: unknown syntax is never destroyed
		return ClassOpaque
	}
	// containers must really have rules inside, otherwise we have no idea what this is
	if class == ClassContainer && n.AtRule.Block != BlockRules {
		return ClassOpaque
	}
	return class
}

// ClassifyFor is Classify which also evaluates @media conditions against
// the viewport. With keepLarger set size conditions are not checked.
func ClassifyFor(n Node, vp common.Viewport, keepLarger bool) Class {
	class := Classify(n)
	if class != ClassContainer || n.AtRule.BaseName() != "media" {
		return class
	}
	if !MatchesViewport(n.AtRule.Prelude, vp, keepLarger) {
		return ClassFilteredContainer
	}
	return class
}
