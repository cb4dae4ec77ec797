package services

import (
	"context"
	"strings"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/logger"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

// LocationResolver fills in coordinates for destinations that arrive
// without them: first from the location store by code, then by geocoding
// the administrative name. Geocoded results are written back to the store.
type LocationResolver struct {
	Store    ports.LocationStore
	Geocoder ports.Geocoder
}

// Resolve updates dests in place and returns how many gained coordinates.
// Lookup failures leave a destination unlocated; only cancellation is an error.
func (lr *LocationResolver) Resolve(ctx context.Context, dests []*domain.Destination) (_ int, err error) {
	defer obs.Time(ctx, "locations.Resolve")(&err)

	log := logger.Component("locations")

	var pending []*domain.Destination
	for _, d := range dests {
		if !d.HasCoords() {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	resolved := 0

	if lr.Store != nil {
		codes := make([]string, 0, len(pending))
		for _, d := range pending {
			if d.Location.Code != "" {
				codes = append(codes, d.Location.Code)
			}
		}

		found, err := lr.Store.GetMany(ctx, codes)
		if err != nil {
			if ctx.Err() != nil {
				return resolved, ctx.Err()
			}
			log.Warn().Err(err).Msg("location store lookup failed")
			found = nil
		}

		rest := pending[:0]
		for _, d := range pending {
			loc, ok := found[d.Location.Code]
			if ok {
				fillLocation(d, loc)
			}
			if d.HasCoords() {
				resolved++
				continue
			}
			rest = append(rest, d)
		}
		pending = rest
	}

	if lr.Geocoder == nil || len(pending) == 0 {
		return resolved, nil
	}

	learned := make(map[string]domain.Location)
	cache := make(map[string]*domain.Coordinates)
	for _, d := range pending {
		q := geocodeQuery(d.Location)
		if q == "" {
			continue
		}

		c, seen := cache[q]
		if !seen {
			got, err := lr.Geocoder.Geocode(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return resolved, ctx.Err()
				}
				log.Warn().Err(err).Str("destination", d.ID).Str("query", q).Msg("geocode failed")
			} else {
				c = &got
			}
			cache[q] = c
		}
		if c == nil {
			continue
		}

		coords := *c
		d.Location.Coords = &coords
		resolved++
		if d.Location.Code != "" {
			learned[d.Location.Code] = d.Location
		}
	}

	if lr.Store != nil && len(learned) > 0 {
		if err := lr.Store.PutMany(ctx, learned); err != nil {
			log.Warn().Err(err).Int("locations", len(learned)).Msg("location store write failed")
		}
	}

	return resolved, nil
}

// fillLocation copies cached fields without overwriting what ingestion gave.
func fillLocation(d *domain.Destination, loc domain.Location) {
	if d.Location.Province == "" {
		d.Location.Province = loc.Province
	}
	if d.Location.District == "" {
		d.Location.District = loc.District
	}
	if d.Location.Subdistrict == "" {
		d.Location.Subdistrict = loc.Subdistrict
	}
	if d.Location.Coords == nil && loc.Coords != nil {
		c := *loc.Coords
		d.Location.Coords = &c
	}
}

func geocodeQuery(l domain.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Subdistrict, l.District, l.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
