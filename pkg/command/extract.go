package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Temperatures outside this range are treated as mis-parsed and dropped.
const (
	MinTemperature = 60
	MaxTemperature = 85
)

var (
	navigateLeads = leadPatterns(
		"navigate to ", "directions to ", "take me to ", "route to ",
		"how to get to ", "drive to ", "go to ",
	)
	locationLeads = leadPatterns("near ", "nearby ", "close to ", "around ", "in ", "at ")

	timingPattern = regexp.MustCompile(`\b(today|tonight|tomorrow|this weekend|next week|` +
		`monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
		`\d{1,2}h\d{2}(?:\s?[ap]m)?|\d{1,2}\s?[ap]m)\b`)

	temperaturePattern = regexp.MustCompile(`(?:^|\s)(\d{1,3})\s?(?:degrees|degree|deg)(?:\s|$)`)

	// Normalize drops ":" and "°", so they are spelled out before it runs.
	clockPattern  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	degreePattern = regexp.MustCompile(`(\d)\s*°(?i:[cf]\b)?`)
)

type bucket[T any] struct {
	value    T
	keywords []string
}

var serviceTypes = []bucket[ServiceType]{
	{ServiceOilChange, []string{"oil change", "oil", "lube"}},
	{ServiceTire, []string{"tire", "tires", "tyre", "tyres", "rotation", "alignment"}},
	{ServiceBrake, []string{"brake", "brakes", "brake pads"}},
	{ServiceBattery, []string{"battery"}},
	{ServiceEngine, []string{"engine", "transmission"}},
	{ServiceMaintenance, []string{"maintenance", "service", "checkup", "inspection", "tune up"}},
}

var climateActions = []bucket[Action]{
	{ActionOn, []string{"turn on", "start", "enable"}},
	{ActionOff, []string{"turn off", "stop", "disable"}},
	{ActionSet, []string{"set", "change"}},
}

var lightActions = []bucket[Action]{
	{ActionOn, []string{"turn on", "switch on", "on"}},
	{ActionOff, []string{"turn off", "switch off", "off"}},
}

var lightTypes = []bucket[LightType]{
	{LightHeadlights, []string{"headlights", "headlight", "high beams", "low beams", "brights"}},
	{LightParking, []string{"parking lights", "parking light", "parking"}},
	{LightInterior, []string{"interior", "cabin lights", "dome light", "inside"}},
	{LightFog, []string{"fog lights", "fog"}},
}

var emergencyTypes = []bucket[EmergencyType]{
	{EmergencyAccident, []string{"accident", "crash", "crashed", "collision"}},
	{EmergencyBreakdown, []string{"breakdown", "broke down", "broken down", "stalled", "stranded"}},
	{EmergencyMedical, []string{"medical", "ambulance", "hurt", "injured", "heart attack", "bleeding"}},
	{EmergencyTheft, []string{"theft", "stolen", "robbed", "break in"}},
}

// Extract pulls the typed parameters for v out of already normalized text.
// It never fails: values that cannot be found are left at their zero value, and
// variants without arguments, Unknown, and empty text all yield NoParams.
func Extract(normalized string, v Variant) Params {
	if normalized == "" {
		return NoParams{}
	}
	switch v {
	case Navigate:
		return NavigateParams{Destination: afterLead(normalized, navigateLeads)}
	case ScheduleMaintenance:
		return MaintenanceParams{
			ServiceType: firstBucket(normalized, serviceTypes),
			Timing:      timing(normalized),
		}
	case FindServiceCenter:
		return ServiceCenterParams{
			ServiceType: firstBucket(normalized, serviceTypes),
			Location:    afterLead(normalized, locationLeads),
		}
	case ClimateControl:
		return ClimateParams{
			Temperature: temperature(normalized),
			Action:      firstBucket(normalized, climateActions),
		}
	case LightsControl:
		lt := firstBucket(normalized, lightTypes)
		if lt == "" {
			lt = LightAll
		}
		return LightsParams{LightType: lt, Action: earliestBucket(normalized, lightActions)}
	case EmergencyCall:
		et := firstBucket(normalized, emergencyTypes)
		if et == "" {
			et = EmergencyGeneral
		}
		return EmergencyParams{EmergencyType: et}
	default:
		return NoParams{}
	}
}

// ExtractParameters normalizes text and returns the parameters of v as a map.
// The map is never nil; missing values are absent keys.
func ExtractParameters(text string, v Variant) map[string]any {
	return Extract(extractionText(text), v).Map()
}

// extractionText normalizes raw after spelling out the symbols extractors
// read: "72°F" becomes "72 degrees" and "10:30" becomes "10h30".
func extractionText(raw string) string {
	s := clockPattern.ReplaceAllString(raw, "${1}h${2}")
	s = degreePattern.ReplaceAllString(s, "$1 degrees ")
	return Normalize(s)
}

func leadPatterns(leads ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(leads))
	for i, lead := range leads {
		out[i] = regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(lead) + `(.+)$`)
	}
	return out
}

// afterLead returns the trimmed text following the first lead-in that matches.
func afterLead(text string, leads []*regexp.Regexp) string {
	for _, re := range leads {
		if m := re.FindStringSubmatch(text); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstBucket[T any](text string, buckets []bucket[T]) T {
	for _, b := range buckets {
		if hasAnyPhrase(text, b.keywords) {
			return b.value
		}
	}
	var zero T
	return zero
}

// earliestBucket returns the bucket whose keyword appears first in text, so
// "turn off the lights on the porch" is off. Ties go to the earlier bucket.
func earliestBucket[T any](text string, buckets []bucket[T]) T {
	var best T
	bestAt := -1
	padded := " " + text + " "
	for _, b := range buckets {
		for _, kw := range b.keywords {
			at := strings.Index(padded, " "+kw+" ")
			if at >= 0 && (bestAt < 0 || at < bestAt) {
				best, bestAt = b.value, at
			}
		}
	}
	return best
}

// timing returns the first timing expression, with clock times as HH:MM.
func timing(text string) string {
	m := timingPattern.FindString(text)
	if m == "" || m[0] < '0' || m[0] > '9' {
		return m
	}
	return strings.Replace(m, "h", ":", 1)
}

// temperature returns the first "<n> degrees" value if it lies in range, else 0.
func temperature(text string) int {
	m := temperaturePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < MinTemperature || n > MaxTemperature {
		return 0
	}
	return n
}
