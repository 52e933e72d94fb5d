package query

import (
	"fmt"
	"math"

	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/model"
)

// Predicate filters decoded points.
type Predicate interface {
	Match(p *model.Point) bool
	Validate() error
}

// NodePruner is implemented by predicates that can rule out whole subtrees
// from node statistics. MayMatch must return true whenever any point of the
// subtree could match.
type NodePruner interface {
	MayMatch(n *hierarchy.Node) bool
}

// AttributeUser is implemented by predicates that read intensity or time.
type AttributeUser interface {
	UsesAttributes() bool
}

// BoxPredicate keeps points inside a closed box.
type BoxPredicate struct {
	Box model.BBox
}

func (b BoxPredicate) Match(p *model.Point) bool { return b.Box.Contains(p) }

func (b BoxPredicate) Validate() error {
	if err := b.Box.Validate(); err != nil {
		return &ConfigError{Field: "filter.box", Reason: err.Error()}
	}
	return nil
}

func (b BoxPredicate) MayMatch(n *hierarchy.Node) bool { return b.Box.Intersects(n.BBox) }

func (b BoxPredicate) UsesAttributes() bool { return false }

// RangePredicate keeps points whose attribute lies in [Min, Max]. Infinite
// bounds express open ranges.
type RangePredicate struct {
	Attr     model.Attribute
	Min, Max float64
}

func (r RangePredicate) Match(p *model.Point) bool {
	v := p.Value(r.Attr)
	return v >= r.Min && v <= r.Max
}

func (r RangePredicate) Validate() error {
	field := "filter." + r.Attr.String()
	if r.Attr > model.AttrTime {
		return &ConfigError{Field: "filter", Reason: fmt.Sprintf("unknown attribute %d", r.Attr)}
	}
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return &ConfigError{Field: field, Reason: "range bound is NaN"}
	}
	if r.Min > r.Max {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("min %g > max %g", r.Min, r.Max)}
	}
	return nil
}

func (r RangePredicate) MayMatch(n *hierarchy.Node) bool {
	switch r.Attr {
	case model.AttrX:
		return r.Min <= n.BBox.MaxX && r.Max >= n.BBox.MinX
	case model.AttrY:
		return r.Min <= n.BBox.MaxY && r.Max >= n.BBox.MinY
	case model.AttrZ:
		return r.Min <= n.BBox.MaxZ && r.Max >= n.BBox.MinZ
	case model.AttrIntensity:
		return r.Min <= float64(n.IntensityMax) && r.Max >= float64(n.IntensityMin)
	default:
		return true
	}
}

func (r RangePredicate) UsesAttributes() bool {
	return r.Attr == model.AttrIntensity || r.Attr == model.AttrTime
}

// All returns a predicate matching points that match every p.
func All(preds ...Predicate) Predicate {
	return allPredicate(preds)
}

type allPredicate []Predicate

func (a allPredicate) Match(p *model.Point) bool {
	for _, pred := range a {
		if !pred.Match(p) {
			return false
		}
	}
	return true
}

func (a allPredicate) Validate() error {
	for _, pred := range a {
		if err := pred.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a allPredicate) MayMatch(n *hierarchy.Node) bool {
	for _, pred := range a {
		if pr, ok := pred.(NodePruner); ok && !pr.MayMatch(n) {
			return false
		}
	}
	return true
}

func (a allPredicate) UsesAttributes() bool {
	for _, pred := range a {
		if usesAttributes(pred) {
			return true
		}
	}
	return false
}

func usesAttributes(p Predicate) bool {
	if au, ok := p.(AttributeUser); ok {
		return au.UsesAttributes()
	}
	// Unknown predicates may look at any field.
	return true
}
