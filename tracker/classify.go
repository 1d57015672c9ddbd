package tracker

import "strings"

// DeviceInfo is the user agent classification attached to every event.
type DeviceInfo struct {
	Device  string
	Browser string
	OS      string
}

type marker struct {
	label   string
	needles []string
}

// Order matters in every table: the first entry with a matching needle wins.
var (
	mobileNeedles = []string{"Mobile", "iPhone", "iPod", "iPad", "Android", "BlackBerry", "IEMobile"}

	browserMarkers = []marker{
		{"Firefox", []string{"Firefox"}},
		{"Samsung Browser", []string{"SamsungBrowser"}},
		{"Opera", []string{"Opera", "OPR"}},
		{"IE", []string{"Trident"}},
		{"Edge", []string{"Edge", "Edg/"}},
		{"Chrome", []string{"Chrome"}},
		{"Safari", []string{"Safari"}},
	}

	osMarkers = []marker{
		{"Android", []string{"Android"}},
		{"iOS", []string{"iPhone", "iPad", "iPod"}},
		{"Windows", []string{"Windows"}},
		{"Mac OS", []string{"Mac OS"}},
		{"Linux", []string{"Linux"}},
	}
)

// Classify derives device type, browser and OS from a user agent string by
// substring match.
func Classify(userAgent string) DeviceInfo {
	info := DeviceInfo{
		Device:  "Desktop",
		Browser: firstMatch(userAgent, browserMarkers, "Other"),
		OS:      firstMatch(userAgent, osMarkers, "Unknown"),
	}
	if containsAny(userAgent, mobileNeedles) {
		info.Device = "Mobile"
	}
	return info
}

func firstMatch(ua string, markers []marker, fallback string) string {
	for _, m := range markers {
		if containsAny(ua, m.needles) {
			return m.label
		}
	}
	return fallback
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
