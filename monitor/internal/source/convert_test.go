package source

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
)

func TestNumberBytes(t *testing.T) {
	tests := []struct {
		in      json.Number
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"16000000000", 16_000_000_000, false},
		{"18446744073709551615", math.MaxUint64, false},
		{"1e9", 1_000_000_000, false},
		{"-500", 0, true},
		{"10.5", 0, true},
		{"18446744073709551616", 0, true},
		{"1e400", 0, true},
	}
	for _, tc := range tests {
		got, err := numberBytes("memory.used", tc.in)
		if tc.wantErr {
			if !errors.Is(err, compute.ErrInvalidSnapshot) {
				t.Errorf("numberBytes(%q): err = %v, want ErrInvalidSnapshot", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("numberBytes(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestNumberCount(t *testing.T) {
	tests := []struct {
		in      json.Number
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"120", 120, false},
		{"3e2", 300, false},
		{"-1", 0, true},
		{"2.5", 0, true},
		{"1e300", 0, true},
	}
	for _, tc := range tests {
		got, err := numberCount("cpu.count", tc.in)
		if tc.wantErr {
			if !errors.Is(err, compute.ErrInvalidSnapshot) {
				t.Errorf("numberCount(%q): err = %v, want ErrInvalidSnapshot", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("numberCount(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestCheckInteger(t *testing.T) {
	tests := []struct {
		v      float64
		reason string
	}{
		{math.NaN(), "must be finite"},
		{math.Inf(1), "out of range"},
		{-1, "must not be negative"},
		{0.25, "must be an integer"},
	}
	for _, tc := range tests {
		err := checkInteger("f", tc.v)
		var ve *compute.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("checkInteger(%v): got %v, want *ValidationError", tc.v, err)
			continue
		}
		if ve.Reason != tc.reason {
			t.Errorf("checkInteger(%v): reason %q, want %q", tc.v, ve.Reason, tc.reason)
		}
	}
	if err := checkInteger("f", 42); err != nil {
		t.Errorf("checkInteger(42) = %v, want nil", err)
	}
}

func TestWireSnapshot_NilEndpointsStayNil(t *testing.T) {
	snap, err := wireSnapshot{}.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if snap.EndpointStats != nil {
		t.Errorf("EndpointStats = %v, want nil", snap.EndpointStats)
	}
}
