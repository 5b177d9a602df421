package notify

import "slices"

// Condition is one typed predicate over an event record. New condition kinds
// plug in here without touching the dispatch loop.
type Condition interface {
	Name() string
	Matches(ev *EventRecord) bool
}

type inSetCondition struct {
	name  string
	set   []string
	field func(ev *EventRecord) string
}

func (c inSetCondition) Name() string { return c.name }

func (c inSetCondition) Matches(ev *EventRecord) bool {
	return slices.Contains(c.set, c.field(ev))
}

type escalationGteCondition struct {
	threshold int
}

func (escalationGteCondition) Name() string { return "escalation_level_gte" }

// Matches is false for events without an escalation level, so rules using
// this condition should be scoped to alert events.
func (c escalationGteCondition) Matches(ev *EventRecord) bool {
	return ev.EscalationLevel >= 0 && ev.EscalationLevel >= c.threshold
}

// predicates expands the configured conditions into a typed list.
func (c Conditions) predicates() []Condition {
	var ps []Condition
	if len(c.SeverityIn) > 0 {
		ps = append(ps, inSetCondition{"severity_in", c.SeverityIn, func(ev *EventRecord) string { return ev.Severity }})
	}
	if len(c.RegionIn) > 0 {
		ps = append(ps, inSetCondition{"region_in", c.RegionIn, func(ev *EventRecord) string { return ev.Region }})
	}
	if len(c.CategoryIn) > 0 {
		ps = append(ps, inSetCondition{"category_in", c.CategoryIn, func(ev *EventRecord) string { return ev.Category }})
	}
	if len(c.SourceIn) > 0 {
		ps = append(ps, inSetCondition{"source_in", c.SourceIn, func(ev *EventRecord) string { return ev.Source }})
	}
	if c.EscalationLevelGte != nil {
		ps = append(ps, escalationGteCondition{*c.EscalationLevelGte})
	}
	return ps
}

// Match AND-reduces all configured conditions. A rule with no conditions
// always matches.
func (c Conditions) Match(ev *EventRecord) bool {
	for _, p := range c.predicates() {
		if !p.Matches(ev) {
			return false
		}
	}
	return true
}
