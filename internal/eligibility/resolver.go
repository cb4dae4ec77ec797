// Package eligibility decides the largest vehicle class a destination may use.
package eligibility

import (
	"context"
	"fmt"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/ports"
)

// Resolver returns a ceiling for d, or false when it has no opinion.
type Resolver interface {
	Resolve(d *domain.Destination) (domain.VehicleClass, bool)
}

type ResolverFunc func(d *domain.Destination) (domain.VehicleClass, bool)

func (f ResolverFunc) Resolve(d *domain.Destination) (domain.VehicleClass, bool) { return f(d) }

// Explicit honours a ceiling already set on the destination by ingestion.
var Explicit = ResolverFunc(func(d *domain.Destination) (domain.VehicleClass, bool) {
	if d.Ceiling.IsValid() {
		return d.Ceiling, true
	}
	return domain.ClassNone, false
})

// Historical resolves from the classes a destination was actually served by.
// A single class seen means that class is the ceiling; several classes mean
// the largest seen.
type Historical struct {
	classes map[string][]domain.VehicleClass
}

func NewHistorical(classes map[string][]domain.VehicleClass) *Historical {
	return &Historical{classes: classes}
}

func (h *Historical) Resolve(d *domain.Destination) (domain.VehicleClass, bool) {
	seen := h.classes[d.ID]
	best := domain.ClassNone
	for _, c := range seen {
		if c.IsValid() && c > best {
			best = c
		}
	}
	return best, best != domain.ClassNone
}

// Table resolves from a reference-plan-mined ceiling table.
type Table struct {
	table map[string]domain.VehicleClass
}

func NewTable(table map[string]domain.VehicleClass) *Table {
	return &Table{table: table}
}

func (t *Table) Resolve(d *domain.Destination) (domain.VehicleClass, bool) {
	c, ok := t.table[d.ID]
	if !ok || !c.IsValid() {
		return domain.ClassNone, false
	}
	return c, true
}

// Chain asks each resolver in order; the first answer wins. When nobody
// answers, the destination is unrestricted.
type Chain struct {
	resolvers []Resolver
	fallback  domain.VehicleClass
}

func NewChain(fallback domain.VehicleClass, resolvers ...Resolver) *Chain {
	if !fallback.IsValid() {
		fallback = domain.ClassLarge
	}
	return &Chain{resolvers: resolvers, fallback: fallback}
}

func (c *Chain) Resolve(d *domain.Destination) (domain.VehicleClass, bool) {
	for _, r := range c.resolvers {
		if v, ok := r.Resolve(d); ok {
			return v, true
		}
	}
	return c.fallback, true
}

// MaxClass returns the ceiling of d under r, or fallback when r has no
// opinion.
func MaxClass(r Resolver, d *domain.Destination, fallback domain.VehicleClass) domain.VehicleClass {
	if r != nil {
		if c, ok := r.Resolve(d); ok && c.IsValid() {
			return c
		}
	}
	return fallback
}

// FromSource builds the standard chain: explicit, historical, reference table, largest.
// A ceiling set by the caller is an operator override and outranks mined data.
func FromSource(ctx context.Context, src ports.EligibilitySource) (*Chain, error) {
	if src == nil {
		return NewChain(domain.ClassLarge, Explicit), nil
	}

	hist, err := src.HistoricalClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibility: load historical classes: %w", err)
	}
	table, err := src.EligibilityTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibility: load reference table: %w", err)
	}

	return NewChain(domain.ClassLarge, Explicit, NewHistorical(hist), NewTable(table)), nil
}

// CanAdmit reports whether d may join trip without forcing the trip below
// its assigned class.
func CanAdmit(trip *domain.Trip, d *domain.Destination) bool {
	if !d.Ceiling.IsValid() {
		return true
	}
	return d.Ceiling >= trip.Class
}
