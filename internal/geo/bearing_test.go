package geo

import (
	"math"
	"testing"
	"time"
)

func fix(lon, lat float64) Fix {
	return Fix{ID: "w1", Time: time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC), Lon: lon, Lat: lat}
}

func TestInitialBearingCardinal(t *testing.T) {
	tests := []struct {
		name string
		a, b Fix
		want float64
	}{
		{"due north", fix(0, 0), fix(0, 1), 0},
		{"due east", fix(0, 0), fix(1, 0), 90},
		{"due south", fix(0, 1), fix(0, 0), 180},
		{"due west", fix(1, 0), fix(0, 0), 270},
		{"northeast on equator", fix(0, 0), fix(1, 1), 44.995636},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialBearing(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("InitialBearing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitialBearingRange(t *testing.T) {
	// Sweep a ring of destinations around a high-latitude origin; every
	// bearing must land in [0, 360).
	origin := fix(158.95, -54.50) // Macquarie Island
	for deg := 0; deg < 360; deg += 7 {
		rad := float64(deg) * math.Pi / 180
		dst := fix(origin.Lon+2*math.Sin(rad), origin.Lat+2*math.Cos(rad))
		b := InitialBearing(origin, dst)
		if b < 0 || b >= 360 {
			t.Fatalf("bearing %v out of [0, 360) for destination angle %d", b, deg)
		}
	}
}

func TestInitialBearingFrameIndependence(t *testing.T) {
	// Shifting both endpoints by the same longitude offset must not change
	// the bearing: it is a pure function of the relative geometry.
	a, b := fix(10, -40), fix(12, -42)
	want := InitialBearing(a, b)
	for _, shift := range []float64{-170, -60, 30, 120} {
		a2, b2 := a, b
		a2.Lon += shift
		b2.Lon += shift
		got := InitialBearing(a2, b2)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("longitude shift %v changed bearing: got %v, want %v", shift, got, want)
		}
	}
}

func TestBearingsLength(t *testing.T) {
	base := time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC)
	var track Track
	for i := 0; i < 10; i++ {
		track = append(track, Fix{ID: "w1", Time: base.AddDate(0, 0, i), Lon: float64(i), Lat: float64(-50 + i)})
	}
	for l := 0; l <= len(track); l++ {
		got := Bearings(track[:l])
		want := l - 1
		if want < 0 {
			want = 0
		}
		if len(got) != want {
			t.Errorf("Bearings(len %d) returned %d values, want %d", l, len(got), want)
		}
		for _, b := range got {
			if b.Degrees < 0 || b.Degrees >= 360 {
				t.Errorf("bearing %v out of range", b.Degrees)
			}
		}
	}
}

func TestBearingsStampedWithOriginFix(t *testing.T) {
	base := time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC)
	track := Track{
		{ID: "w1", Time: base, Lon: 0, Lat: 0},
		{ID: "w1", Time: base.AddDate(0, 0, 1), Lon: 1, Lat: 0},
		{ID: "w1", Time: base.AddDate(0, 0, 2), Lon: 2, Lat: 0},
	}
	got := Bearings(track)
	if len(got) != 2 {
		t.Fatalf("got %d bearings, want 2", len(got))
	}
	if !got[0].Time.Equal(base) || !got[1].Time.Equal(base.AddDate(0, 0, 1)) {
		t.Errorf("bearings not stamped with the origin fix time: %v, %v", got[0].Time, got[1].Time)
	}
}
