// Package timefilter encodes time-range restrictions as search URL
// fragments. Only the Google family understands these fragments; the
// engine package decides what to do with them per engine.
package timefilter

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrBadKeyword reports an unrecognized relative time keyword. The
// affected query is skipped; the run continues.
var ErrBadKeyword = errors.New("unknown relative time keyword")

// relCodes maps relative keywords to Google qdr codes. "24hour" and
// "day" are aliases.
var relCodes = map[string]string{
	"hour":   "h",
	"24hour": "d",
	"day":    "d",
	"week":   "w",
	"month":  "m",
	"year":   "y",
}

const dateLayout = "01/02/2006" // MM/DD/YYYY, as Google's cdr fields expect

// Filter restricts search results to a time window: either nothing, a
// relative keyword, or an explicit date range. At most one form is set;
// the run config validation enforces that before any Filter is built.
type Filter struct {
	past  string
	start time.Time
	end   time.Time
}

// None returns the empty filter.
func None() Filter {
	return Filter{}
}

// Past builds a relative filter from a keyword (hour, 24hour, day,
// week, month, year). The keyword is validated at encode time.
func Past(keyword string) Filter {
	return Filter{past: keyword}
}

// Range builds an explicit start/end filter.
func Range(start, end time.Time) Filter {
	return Filter{start: start, end: end}
}

// IsZero reports whether no restriction is set.
func (f Filter) IsZero() bool {
	return f.past == "" && f.start.IsZero() && f.end.IsZero()
}

// Fragment returns the URL query fragment for the filter, e.g.
// "tbs=qdr:m" or an escaped "tbs=cdr:1,cd_min:...,cd_max:..." pair.
// The empty filter yields "".
func (f Filter) Fragment() (string, error) {
	switch {
	case f.IsZero():
		return "", nil
	case f.past != "":
		code, ok := relCodes[f.past]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrBadKeyword, f.past)
		}
		return "tbs=qdr:" + code, nil
	default:
		val := fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s",
			f.start.Format(dateLayout), f.end.Format(dateLayout))
		return "tbs=" + url.QueryEscape(val), nil
	}
}
