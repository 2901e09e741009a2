// Package blockdetect recognizes bot-challenge pages served in place of
// real search results. Detection is advisory: the page is still
// returned to the caller, but a hit is logged so the user knows the
// saved or scraped content is a challenge page, not results.
package blockdetect

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector inspects a fetched page and reports whether a protection
// system intercepted it, naming the system on a hit.
type Detector func(status int, header http.Header, body []byte) (bool, string)

// Default returns the detector chain applied to every fetched page.
func Default() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
		detectDataDome,
		detectGenericCaptcha,
	}
}

// Detect runs the detectors in order and returns the first hit.
func Detect(status int, header http.Header, body []byte, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if hit, src := d(status, header, body); hit {
			return true, src
		}
	}
	return false, ""
}

// detectGoogleSorry matches Google's interstitial for automated traffic.
func detectGoogleSorry(status int, header http.Header, body []byte) (bool, string) {
	if status == http.StatusTooManyRequests {
		return true, "Google"
	}
	if status == http.StatusOK || status == http.StatusServiceUnavailable {
		if bytes.Contains(body, []byte("Our systems have detected unusual traffic")) ||
			bytes.Contains(body, []byte("/sorry/index")) {
			return true, "Google"
		}
	}
	return false, ""
}

func detectCloudflare(status int, header http.Header, body []byte) (bool, string) {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(body, []byte("cf-turnstile")) ||
		bytes.Contains(body, []byte("cf-browser-verification")) ||
		bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectDataDome(status int, header http.Header, body []byte) (bool, string) {
	if status != http.StatusForbidden {
		return false, ""
	}
	if header.Get("X-DataDome") != "" || header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

// detectGenericCaptcha is a last-resort check for block pages that slip
// past the vendor-specific detectors.
func detectGenericCaptcha(status int, header http.Header, body []byte) (bool, string) {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return false, ""
	}
	lower := bytes.ToLower(body)
	if bytes.Contains(lower, []byte("captcha")) {
		return true, "captcha"
	}
	return false, ""
}
