package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/multierr"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
)

// Integer fields of snapshot documents are decoded as json.Number and
// converted here, so a negative, fractional or oversized value is reported
// as a *compute.ValidationError instead of failing the JSON decode or
// being clamped.

type wireCPU struct {
	Percent float64     `json:"percent"`
	Count   json.Number `json:"count"`
}

type wireUsage struct {
	Percent float64     `json:"percent"`
	Used    json.Number `json:"used"`
	Total   json.Number `json:"total"`
}

type wireEndpoint struct {
	Count     json.Number `json:"count"`
	AvgTime   float64     `json:"avg_time"`
	ErrorRate float64     `json:"error_rate"`
}

// wireSnapshot is the JSON form of compute.Snapshot.
type wireSnapshot struct {
	CPU           wireCPU                 `json:"cpu"`
	Memory        wireUsage               `json:"memory"`
	Disk          wireUsage               `json:"disk"`
	EndpointStats map[string]wireEndpoint `json:"endpoint_stats"`
}

func (w wireSnapshot) snapshot() (*compute.Snapshot, error) {
	cpu, err := w.CPU.stat()
	mem, memErr := w.Memory.stat("memory")
	disk, diskErr := w.Disk.stat("disk")
	stats, statsErr := endpointStats(w.EndpointStats)
	if err = multierr.Combine(err, memErr, diskErr, statsErr); err != nil {
		return nil, err
	}
	return &compute.Snapshot{CPU: cpu, Memory: mem, Disk: disk, EndpointStats: stats}, nil
}

func (c wireCPU) stat() (compute.CPUStat, error) {
	n, err := numberCount("cpu.count", c.Count)
	return compute.CPUStat{Percent: c.Percent, Count: n}, err
}

func (u wireUsage) stat(prefix string) (compute.UsageStat, error) {
	used, err := numberBytes(prefix+".used", u.Used)
	total, totalErr := numberBytes(prefix+".total", u.Total)
	return compute.UsageStat{Percent: u.Percent, Used: used, Total: total},
		multierr.Append(err, totalErr)
}

// endpointStats converts in name order so the combined error is stable.
// A nil map stays nil.
func endpointStats(in map[string]wireEndpoint) (map[string]compute.EndpointStat, error) {
	if in == nil {
		return nil, nil
	}
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]compute.EndpointStat, len(in))
	var errs error
	for _, name := range names {
		w := in[name]
		n, err := numberCount(endpointField(name, "count"), w.Count)
		errs = multierr.Append(errs, err)
		out[name] = compute.EndpointStat{Count: n, AvgTime: w.AvgTime, ErrorRate: w.ErrorRate}
	}
	return out, errs
}

func endpointField(name, field string) string {
	return fmt.Sprintf("endpoint_stats[%q].%s", name, field)
}

// numberBytes converts a JSON byte count. An absent field is 0.
func numberBytes(field string, n json.Number) (uint64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return v, nil
	}
	f, err := parseNumber(field, n)
	if err != nil {
		return 0, err
	}
	return byteCount(field, f)
}

// numberCount converts a JSON request or cpu count. An absent field is 0.
func numberCount(field string, n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(string(n), 10, 0); err == nil {
		if v < 0 {
			return 0, outOfRange(field, v, "must not be negative")
		}
		return int(v), nil
	}
	f, err := parseNumber(field, n)
	if err != nil {
		return 0, err
	}
	return count(field, f)
}

func parseNumber(field string, n json.Number) (float64, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, outOfRange(field, string(n), "out of range")
		}
		return 0, outOfRange(field, string(n), "must be a number")
	}
	return f, nil
}

// byteCount converts a float byte count to uint64 without clamping.
func byteCount(field string, v float64) (uint64, error) {
	if err := checkInteger(field, v); err != nil {
		return 0, err
	}
	if v >= math.MaxUint64 {
		return 0, outOfRange(field, v, "out of range")
	}
	return uint64(v), nil
}

// count converts a float count to int without clamping.
func count(field string, v float64) (int, error) {
	if err := checkInteger(field, v); err != nil {
		return 0, err
	}
	if v >= math.MaxInt {
		return 0, outOfRange(field, v, "out of range")
	}
	return int(v), nil
}

// checkInteger rejects NaN, ±Inf, negative and fractional values.
func checkInteger(field string, v float64) error {
	switch {
	case math.IsNaN(v):
		return outOfRange(field, v, "must be finite")
	case math.IsInf(v, 0):
		return outOfRange(field, v, "out of range")
	case v < 0:
		return outOfRange(field, v, "must not be negative")
	case v != math.Trunc(v):
		return outOfRange(field, v, "must be an integer")
	}
	return nil
}

func outOfRange(field string, value any, reason string) *compute.ValidationError {
	return &compute.ValidationError{Field: field, Value: value, Reason: reason}
}
