package domain

import (
	"fmt"
	"strings"
)

// Format is one target encoding for an exported activity. The set is closed:
// every format maps to exactly one file suffix, and the suffixes are disjoint
// so one activity's exports never collide with each other.
type Format string

const (
	FormatJSONSummary Format = "json_summary"
	FormatJSONDetails Format = "json_details"
	FormatGPX         Format = "gpx"
	FormatTCX         Format = "tcx"
	FormatFIT         Format = "fit"
)

var formatSuffix = map[Format]string{
	FormatJSONSummary: "_summary.json",
	FormatJSONDetails: "_details.json",
	FormatGPX:         ".gpx",
	FormatTCX:         ".tcx",
	FormatFIT:         ".fit",
}

// Formats returns every supported export format in stable order.
func Formats() []Format {
	return []Format{FormatJSONSummary, FormatJSONDetails, FormatGPX, FormatTCX, FormatFIT}
}

// Suffix returns the file suffix for the format.
func (f Format) Suffix() string {
	return formatSuffix[f]
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return string(f)
}

// ParseFormat converts a user-supplied format name into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatSuffix[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

// ParseFormats converts a list of format names into Formats. An empty list
// or the single entry "ALL" selects every supported format.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(names[0], "all")) {
		return Formats(), nil
	}
	formats := make([]Format, 0, len(names))
	seen := make(map[Format]struct{}, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		formats = append(formats, f)
	}
	return formats, nil
}
