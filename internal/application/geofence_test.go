package application

import (
	"context"
	"testing"
)

func TestParseCoordinates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		spec string
		want Position
		ok   bool
	}{
		{name: "plain pair", spec: "40.7128,-74.0060", want: Position{Latitude: 40.7128, Longitude: -74.0060}, ok: true},
		{name: "spaced pair", spec: " 51.5074 , -0.1278 ", want: Position{Latitude: 51.5074, Longitude: -0.1278}, ok: true},
		{name: "free text", spec: "Community Hall, Room 2"},
		{name: "missing longitude", spec: "40.7128"},
		{name: "latitude out of range", spec: "95.0,10.0"},
		{name: "longitude out of range", spec: "10.0,190.0"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseCoordinates(tc.spec)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v for %q, got %v", tc.ok, tc.spec, ok)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestCoordinateGeofence_Inside(t *testing.T) {
	t.Parallel()

	verifier := CoordinateGeofence{}
	// 0.001 degrees of latitude is roughly 111 meters.
	near := Position{Latitude: 0.001, Longitude: 0}

	inside, err := verifier.Inside(context.Background(), "0.0,0.0", 120, near)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !inside {
		t.Fatalf("expected position within a 120m radius")
	}

	inside, err = verifier.Inside(context.Background(), "0.0,0.0", 100, near)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if inside {
		t.Fatalf("expected position outside a 100m radius")
	}
}

func TestCoordinateGeofence_PassesFreeTextLocations(t *testing.T) {
	t.Parallel()

	verifier := CoordinateGeofence{}
	inside, err := verifier.Inside(context.Background(), "Community Hall", 50, Position{Latitude: 89, Longitude: 179})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !inside {
		t.Fatalf("expected free-text locations to pass unverified")
	}
}
