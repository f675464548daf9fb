package critical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"critcss/common"
	"critcss/css"
)

// DefaultQueryConcurrency limits number of renderer queries in flight.
const DefaultQueryConcurrency = 4

// DefaultClearingProperties are declarations which make rejected rule a
// candidate for self-clearing recheck.
var DefaultClearingProperties = []string{"clear", "float", "overflow", "overflow-x", "overflow-y"}

// Params controls selection.
type Params struct {
	Viewport               common.Viewport
	ForceInclude           []Matcher
	Strict                 bool
	KeepLargerMediaQueries bool
	// nil means DefaultClearingProperties, empty slice disables recheck
	ClearingProperties []string
	QueryConcurrency   int
	Log                *zap.Logger
}

// Stats describes what selection did to a stylesheet.
type Stats struct {
	Selectors    int // selectors seen
	Kept         int
	Dropped      int
	Forced       int // kept without query
	Interactive  int // dropped as interaction state
	Strict       int // rejected by strict checks
	Queried      int // unique queries issued
	QueryFailed  int // queries rejected by page
	Rescued      int // kept by self-clearing recheck
	MediaDropped int // @media which could not match viewport
	PagesDropped int
}

type verdict int

const (
	pending verdict = iota
	keep
	drop
)

type selectorState struct {
	text    string
	query   string
	verdict verdict
	// rejected by renderer answer rather than by a rule or failure
	rejected bool
}

type ruleState struct {
	rule      *css.Rule
	selectors []*selectorState
	clearing  []string
}

// selection is state of a single Select call.
type selection struct {
	params Params
	force  *ForceIncluder
	r      Renderer
	log    *zap.Logger
	stats  Stats

	rules   []*ruleState
	queries []string       // unique queries in order of appearance
	answers map[string]int // query -> index in queries
}

// Select prunes sheet in place keeping only selectors which affect above the
// fold rendering of the page behind renderer. Parts of the stylesheet which
// are not selector based are kept according to their class.
func Select(ctx context.Context, sheet *css.Stylesheet, r Renderer, params Params) (Stats, error) {
	s, err := newSelection(r, params)
	if err != nil {
		return Stats{}, err
	}
	if sheet == nil || len(sheet.Nodes) == 0 {
		return s.stats, nil
	}

	s.collect(sheet.Nodes)

	results, err := s.runQueries(ctx)
	if err != nil {
		return s.stats, err
	}
	anchors := s.applyAnswers(results)

	if err := s.recheckClearing(ctx, anchors); err != nil {
		return s.stats, err
	}

	sheet.Nodes = s.prune(sheet.Nodes)

	for _, rs := range s.rules {
		for _, sel := range rs.selectors {
			if sel.verdict == keep {
				s.stats.Kept++
			} else {
				s.stats.Dropped++
			}
		}
	}
	s.log.Debug("Selection done",
		zap.Int("selectors", s.stats.Selectors),
		zap.Int("kept", s.stats.Kept),
		zap.Int("forced", s.stats.Forced),
		zap.Int("queried", s.stats.Queried),
		zap.Int("failed", s.stats.QueryFailed),
		zap.Int("rescued", s.stats.Rescued))
	return s.stats, nil
}

func newSelection(r Renderer, params Params) (*selection, error) {
	if r == nil {
		return nil, errors.New("no renderer")
	}
	force, err := NewForceIncluder(params.ForceInclude)
	if err != nil {
		return nil, common.WithKind(common.KindInput, fmt.Errorf("unable to prepare force-include list: %w", err))
	}
	params.Viewport = params.Viewport.Normalized()
	if params.ClearingProperties == nil {
		params.ClearingProperties = DefaultClearingProperties
	}
	if params.QueryConcurrency <= 0 {
		params.QueryConcurrency = DefaultQueryConcurrency
	}
	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &selection{
		params:  params,
		force:   force,
		r:       r,
		log:     log.Named("critical"),
		answers: make(map[string]int),
	}, nil
}

// collect walks nodes recursing into containers and decides everything
// which could be decided without renderer.
func (s *selection) collect(nodes []css.Node) {
	for _, n := range nodes {
		switch css.ClassifyFor(n, s.params.Viewport, s.params.KeepLargerMediaQueries) {
		case css.ClassRule:
			s.collectRule(n.Rule)
		case css.ClassContainer:
			s.collect(n.AtRule.Rules)
		}
	}
}

func (s *selection) collectRule(rule *css.Rule) {
	rs := &ruleState{rule: rule, clearing: s.clearingProps(rule)}
	for _, text := range rule.Selectors {
		sel := &selectorState{text: text}
		rs.selectors = append(rs.selectors, sel)
		s.stats.Selectors++

		if isInteractive(text) {
			sel.verdict = drop
			s.stats.Interactive++
			continue
		}
		if s.force.Match(text) {
			sel.verdict = keep
			s.stats.Forced++
			continue
		}

		qf := toQuery(text, !s.params.Strict)
		if s.params.Strict {
			if reason := strictReject(qf); reason != "" {
				sel.verdict = drop
				s.stats.Strict++
				s.log.Debug("Selector rejected", zap.String("selector", text), zap.String("reason", reason))
				continue
			}
		}
		if qf.query == "" {
			// nothing to match on page, but it may still style visible content
			sel.verdict = keep
			continue
		}

		sel.query = qf.query
		if _, ok := s.answers[qf.query]; !ok {
			s.answers[qf.query] = len(s.queries)
			s.queries = append(s.queries, qf.query)
		}
	}
	s.rules = append(s.rules, rs)
}

// clearingProps returns clearing relevant properties declared by rule.
func (s *selection) clearingProps(rule *css.Rule) []string {
	var props []string
	for _, d := range rule.Declarations {
		for _, p := range s.params.ClearingProperties {
			if strings.EqualFold(d.Property, p) {
				props = append(props, d.Property)
				break
			}
		}
	}
	return props
}

type answer int

const (
	answerNo answer = iota
	answerYes
	answerFailed
)

// runQueries asks renderer about every unique query concurrently.
func (s *selection) runQueries(ctx context.Context) ([]answer, error) {
	results := make([]answer, len(s.queries))
	if len(s.queries) == 0 {
		return results, nil
	}
	s.stats.Queried = len(s.queries)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.params.QueryConcurrency)
	for i, q := range s.queries {
		g.Go(func() error {
			visible, err := s.r.AboveFold(gctx, q)
			switch {
			case err == nil:
				if visible {
					results[i] = answerYes
				}
				return nil
			case common.KindOf(err) == common.KindQuery:
				results[i] = answerFailed
				s.log.Debug("Selector query failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			return fmt.Errorf("unable to query selector %q: %w", q, err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, a := range results {
		if a == answerFailed {
			s.stats.QueryFailed++
		}
	}
	return results, nil
}

// applyAnswers sets verdicts of queried selectors and returns queries of
// selectors accepted by renderer in order of appearance.
func (s *selection) applyAnswers(results []answer) []string {
	var anchors []string
	for i, a := range results {
		if a == answerYes {
			anchors = append(anchors, s.queries[i])
		}
	}
	for _, rs := range s.rules {
		for _, sel := range rs.selectors {
			if sel.verdict != pending {
				continue
			}
			switch results[s.answers[sel.query]] {
			case answerYes:
				sel.verdict = keep
			case answerNo:
				sel.verdict = drop
				sel.rejected = true
			default:
				sel.verdict = drop
			}
		}
	}
	return anchors
}

// recheckClearing keeps rejected selectors of clearing relevant rules when
// their removal moves visible content. Runs sequentially since renderer
// changes page styles to find out.
func (s *selection) recheckClearing(ctx context.Context, anchors []string) error {
	if len(anchors) == 0 || len(s.params.ClearingProperties) == 0 {
		return nil
	}
	checked := make(map[string]bool)
	for _, rs := range s.rules {
		if len(rs.clearing) == 0 {
			continue
		}
		for _, sel := range rs.selectors {
			if !sel.rejected {
				continue
			}
			shifts, done := checked[sel.text]
			if !done {
				var err error
				shifts, err = s.r.ClearingShift(ctx, sel.text, rs.clearing, anchors)
				switch {
				case err == nil:
				case common.KindOf(err) == common.KindQuery:
					s.log.Debug("Clearing check failed", zap.String("selector", sel.text), zap.Error(err))
					shifts = false
				default:
					return fmt.Errorf("unable to check clearing of %q: %w", sel.text, err)
				}
				checked[sel.text] = shifts
			}
			if shifts {
				sel.verdict = keep
				sel.rejected = false
				s.stats.Rescued++
			}
		}
	}
	return nil
}

// prune rebuilds node list applying verdicts and class policies.
func (s *selection) prune(nodes []css.Node) []css.Node {
	states := make(map[*css.Rule]*ruleState, len(s.rules))
	for _, rs := range s.rules {
		states[rs.rule] = rs
	}
	return s.pruneNodes(nodes, states)
}

func (s *selection) pruneNodes(nodes []css.Node, states map[*css.Rule]*ruleState) []css.Node {
	out := make([]css.Node, 0, len(nodes))
	for _, n := range nodes {
		switch css.ClassifyFor(n, s.params.Viewport, s.params.KeepLargerMediaQueries) {
		case css.ClassRule:
			rs := states[n.Rule]
			if rs == nil {
				continue
			}
			var kept []string
			for _, sel := range rs.selectors {
				if sel.verdict == keep {
					kept = append(kept, sel.text)
				}
			}
			if len(kept) == 0 {
				continue
			}
			n.Rule.Selectors = kept
			out = append(out, n)
		case css.ClassContainer:
			n.AtRule.Rules = s.pruneNodes(n.AtRule.Rules, states)
			if len(n.AtRule.Rules) == 0 {
				continue
			}
			out = append(out, n)
		case css.ClassFilteredContainer:
			s.stats.MediaDropped++
		case css.ClassDropped:
			s.stats.PagesDropped++
		default:
			out = append(out, n)
		}
	}
	return out
}
