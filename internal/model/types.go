// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Role distinguishes the two dashboard variants.
type Role string

// Supported roles.
const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Identity is the opaque credential pair for the current session.
// It is resolved once at startup and never mutated afterward.
type Identity struct {
	Role  Role
	ID    string // instructor id, numeric on the wire
	Email string // student email
}

// Valid reports whether the identity carries the credential its role needs.
func (id Identity) Valid() bool {
	switch id.Role {
	case RoleInstructor:
		return id.ID != ""
	case RoleStudent:
		return id.Email != ""
	default:
		return false
	}
}

// Course is the read-only client projection of a server-side course.
type Course struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	ProfessorID int    `json:"professor_id"`
}

// LabelList decodes a sequence of string-or-number labels. A field that
// is missing or not a sequence decodes to nil instead of erroring, so a
// partially shaped server response never aborts the whole payload.
type LabelList []string

// UnmarshalJSON implements tolerant decoding for LabelList.
func (l *LabelList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	*l = out
	return nil
}

// ScoreList decodes a numeric sequence. Anything that is not a sequence
// of numbers decodes to nil.
type ScoreList []float64

// UnmarshalJSON implements tolerant decoding for ScoreList.
func (s *ScoreList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = nil
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		n, ok := v.(float64)
		if !ok {
			*s = nil
			return nil
		}
		out = append(out, n)
	}
	*s = out
	return nil
}

// Statistics carries the class-wide summary the score endpoints attach.
type Statistics struct {
	Average *float64 `json:"average"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	P25     float64  `json:"25th_percentile"`
	P50     float64  `json:"50th_percentile"`
	P75     float64  `json:"75th_percentile"`
}

// ScoreResult is the untrusted payload of an upload or score query.
type ScoreResult struct {
	Labels     LabelList   `json:"labels"`
	Scores     ScoreList   `json:"scores"`
	Statistics *Statistics `json:"statistics"`
	ClassAvg   ScoreList   `json:"class_avg"`
	Message    string      `json:"message"`
}

// ChartBundle is one named, self-consistent labels/scores pair produced
// from a single upload or query event.
type ChartBundle struct {
	GraphName string    `json:"graphName"`
	Labels    []string  `json:"labels"`
	Scores    []float64 `json:"scores"`
}

// ChartSet is the ordered accumulation of chart bundles for one course.
type ChartSet struct {
	Charts []ChartBundle `json:"charts"`
}

// PersistedStore maps course name to its chart set. It is serialized
// wholesale as a single blob.
type PersistedStore map[string]ChartSet

// SeriesBundle holds the three derived series a dashboard plots.
type SeriesBundle struct {
	Labels         []string
	StudentScores  []float64
	ClassAvgSeries []float64
}

// Empty reports whether there is nothing to plot.
func (b SeriesBundle) Empty() bool {
	return len(b.Labels) == 0 || len(b.StudentScores) == 0
}

// Aligned returns a copy truncated to the shortest of labels and
// scores, so renderers never receive misaligned pairs. The class
// average series is clipped to the same length when present.
func (b SeriesBundle) Aligned() SeriesBundle {
	n := len(b.Labels)
	if len(b.StudentScores) < n {
		n = len(b.StudentScores)
	}
	out := SeriesBundle{
		Labels:        b.Labels[:n],
		StudentScores: b.StudentScores[:n],
	}
	if len(b.ClassAvgSeries) > 0 {
		m := len(b.ClassAvgSeries)
		if m > n {
			m = n
		}
		out.ClassAvgSeries = b.ClassAvgSeries[:m]
	}
	return out
}
