// Package engine maps search engines to URL construction rules. The
// rule table is a plain lookup from engine identifier to a pure builder
// function; building the same parameters always yields the same URL.
package engine

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Engine identifies a supported search engine.
type Engine string

const (
	Google      Engine = "google"
	GoogleImage Engine = "google-image"
	GoogleVideo Engine = "google-video"
	GoogleNews  Engine = "google-news"
	GoogleMaps  Engine = "google-maps"
	Bing        Engine = "bing"
	Yandex      Engine = "yandex"
	DuckDuckGo  Engine = "duckduckgo"
)

// DefaultNum is the result count hint applied when the user gives none.
const DefaultNum = 100

var (
	// ErrUnknown reports an engine outside the supported set. This is a
	// run-level configuration error, caught before any query runs.
	ErrUnknown = errors.New("unknown engine")

	// ErrTimeConflict reports a time filter on the maps engine, where
	// time restriction is meaningless. The affected query is skipped.
	ErrTimeConflict = errors.New("time filter conflicts with map search")
)

// Params are the inputs to a URL builder. Query is the decorated query
// before escaping; each builder escapes it for its own URL position.
type Params struct {
	Query        string
	TimeFragment string // timefilter fragment, "" when unrestricted
	Num          int    // result count hint
	NumSet       bool   // true when the user asked for Num explicitly
}

// A buildFunc produces the final URL plus any feature-drop warnings.
type buildFunc func(p Params) (string, []string, error)

var builders = map[Engine]buildFunc{
	Google:      googleBuilder(""),
	GoogleImage: googleBuilder("isch"),
	// Video searches share the image vertical's tbm value; see DESIGN.md.
	GoogleVideo: googleBuilder("isch"),
	GoogleNews:  googleBuilder("nws"),
	GoogleMaps:  mapsBuilder,
	Bing:        plainBuilder(Bing, "https://www.bing.com/search?q="),
	Yandex:      plainBuilder(Yandex, "https://yandex.com/search/?text="),
	DuckDuckGo:  plainBuilder(DuckDuckGo, "https://duckduckgo.com/?q="),
}

// All returns the supported engines in a stable order.
func All() []Engine {
	return []Engine{
		Google, GoogleImage, GoogleVideo, GoogleNews, GoogleMaps,
		Bing, Yandex, DuckDuckGo,
	}
}

// Parse validates a user-supplied engine name.
func Parse(s string) (Engine, error) {
	e := Engine(s)
	if _, ok := builders[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return e, nil
}

// Build constructs the search URL for the engine. Warnings list features
// the engine cannot express and that were dropped from the URL; they
// never fail the query.
func Build(e Engine, p Params) (string, []string, error) {
	build, ok := builders[e]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknown, e)
	}
	if p.Num <= 0 {
		p.Num = DefaultNum
	}
	return build(p)
}

func googleBuilder(tbm string) buildFunc {
	return func(p Params) (string, []string, error) {
		u := "https://www.google.com/search?num=" + strconv.Itoa(p.Num) +
			"&q=" + url.QueryEscape(p.Query)
		if tbm != "" {
			u += "&tbm=" + tbm
		}
		if p.TimeFragment != "" {
			u += "&" + p.TimeFragment
		}
		return u, nil, nil
	}
}

// mapsBuilder embeds the query in the URL path. Maps accepts neither a
// result count nor a time restriction; a requested time filter is a
// hard conflict rather than a droppable feature.
func mapsBuilder(p Params) (string, []string, error) {
	if p.TimeFragment != "" {
		return "", nil, ErrTimeConflict
	}
	return "https://www.google.com/maps/search/" + url.PathEscape(p.Query), nil, nil
}

func plainBuilder(e Engine, base string) buildFunc {
	return func(p Params) (string, []string, error) {
		var warnings []string
		if p.NumSet {
			warnings = append(warnings, fmt.Sprintf("%s does not support a result count hint; dropped", e))
		}
		if p.TimeFragment != "" {
			warnings = append(warnings, fmt.Sprintf("%s does not support time filters; dropped", e))
		}
		return base + url.QueryEscape(p.Query), warnings, nil
	}
}
