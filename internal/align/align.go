// Package align resamples seal and particle position streams onto a shared
// per-individual daily grid and inner-joins them on bucket time.
package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dahliasan/Elephant-Weaners/internal/geo"
)

// Bucket is one resampled interval for one individual: the interval start
// time and the mean position of all fixes that fell inside the interval.
type Bucket struct {
	Time  time.Time
	Lon   float64
	Lat   float64
	Count int
}

// Pairing holds the two aligned tracks for one individual after the inner
// join, together with the elapsed time (in cadence units) of each bucket
// relative to the first matched bucket.
type Pairing struct {
	ID       string
	Seal     []Bucket
	Particle []Bucket
	Elapsed  []float64
}

// Resample buckets fixes into fixed-width intervals keyed by the UTC
// interval start. Longitude and latitude are aggregated by arithmetic mean,
// ignoring NaN values; a bucket whose fixes are all NaN aggregates to NaN,
// never zero. Buckets are returned in ascending time order; intervals with
// no fixes produce no bucket.
func Resample(fixes []geo.Fix, cadence time.Duration) []Bucket {
	if cadence <= 0 || len(fixes) == 0 {
		return nil
	}

	type acc struct {
		lonSum, latSum float64
		lonN, latN     int
		count          int
	}
	byKey := make(map[time.Time]*acc)
	for _, f := range fixes {
		key := f.Time.UTC().Truncate(cadence)
		a := byKey[key]
		if a == nil {
			a = &acc{}
			byKey[key] = a
		}
		a.count++
		if !math.IsNaN(f.Lon) {
			a.lonSum += f.Lon
			a.lonN++
		}
		if !math.IsNaN(f.Lat) {
			a.latSum += f.Lat
			a.latN++
		}
	}

	out := make([]Bucket, 0, len(byKey))
	for key, a := range byKey {
		b := Bucket{Time: key, Lon: math.NaN(), Lat: math.NaN(), Count: a.count}
		if a.lonN > 0 {
			b.Lon = a.lonSum / float64(a.lonN)
		}
		if a.latN > 0 {
			b.Lat = a.latSum / float64(a.latN)
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// MeanByBucket aggregates an auxiliary numeric series (e.g. current u/v
// components) onto the same bucket grid that Resample uses, with the same
// NaN-ignoring mean rule. The returned map is keyed by bucket start time.
func MeanByBucket(times []time.Time, values []float64, cadence time.Duration) map[time.Time]float64 {
	if cadence <= 0 || len(times) != len(values) {
		return nil
	}
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	seen := make(map[time.Time]bool)
	for i, t := range times {
		key := t.UTC().Truncate(cadence)
		seen[key] = true
		if math.IsNaN(values[i]) {
			continue
		}
		sums[key] += values[i]
		counts[key]++
	}
	out := make(map[time.Time]float64, len(seen))
	for key := range seen {
		if counts[key] > 0 {
			out[key] = sums[key] / float64(counts[key])
		} else {
			out[key] = math.NaN()
		}
	}
	return out
}

// Pair restricts the two resampled tracks to the bucket times present in
// both and derives per-bucket elapsed time in whole cadence units since the
// first shared bucket. Buckets present in only one track are dropped; this
// is an inner join, never padding or interpolation.
//
// Equal length of the two aligned tracks is a hard invariant for everything
// downstream; a mismatch is an alignment defect and returns an error.
func Pair(id string, seal, particle []Bucket, cadence time.Duration) (Pairing, error) {
	inParticle := make(map[time.Time]Bucket, len(particle))
	for _, b := range particle {
		inParticle[b.Time] = b
	}

	var p Pairing
	p.ID = id
	for _, sb := range seal {
		pb, ok := inParticle[sb.Time]
		if !ok {
			continue
		}
		p.Seal = append(p.Seal, sb)
		p.Particle = append(p.Particle, pb)
	}

	if len(p.Seal) != len(p.Particle) {
		return Pairing{}, fmt.Errorf("align: individual %s has %d seal buckets but %d particle buckets after matching", id, len(p.Seal), len(p.Particle))
	}
	if len(p.Seal) == 0 {
		return p, nil
	}

	t0 := p.Seal[0].Time
	p.Elapsed = make([]float64, len(p.Seal))
	for i, b := range p.Seal {
		p.Elapsed[i] = b.Time.Sub(t0).Seconds() / cadence.Seconds()
	}
	return p, nil
}

// Verify re-checks the equal-length invariant on an existing pairing. It is
// used by stages that receive a Pairing they did not build, so a corrupted
// pairing aborts the run instead of silently truncating.
func Verify(p Pairing) error {
	if len(p.Seal) != len(p.Particle) || len(p.Seal) != len(p.Elapsed) {
		return fmt.Errorf("align: individual %s pairing corrupt: seal=%d particle=%d elapsed=%d", p.ID, len(p.Seal), len(p.Particle), len(p.Elapsed))
	}
	return nil
}

// Tracks converts the pairing back into two geo.Tracks so bearings can be
// computed on the aligned positions.
func Tracks(p Pairing) (seal, particle geo.Track) {
	for i := range p.Seal {
		seal = append(seal, geo.Fix{ID: p.ID, Time: p.Seal[i].Time, Lon: p.Seal[i].Lon, Lat: p.Seal[i].Lat})
		particle = append(particle, geo.Fix{ID: p.ID, Time: p.Particle[i].Time, Lon: p.Particle[i].Lon, Lat: p.Particle[i].Lat})
	}
	return seal, particle
}
