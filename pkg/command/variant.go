// Package command turns free-form transcribed speech into a typed vehicle
// command plus extracted parameters.
//
// Recognition is rule based: every Variant owns a list of trigger phrases in a
// Registry, the Classifier scores the normalized input against every phrase and
// keeps the single best match, and a confidence gate maps weak matches to
// Unknown. Variants that need arguments (navigation destination, climate
// temperature, light target, ...) have a dedicated extractor that runs on the
// same normalized text.
//
// Example usage:
//
//	variant, confidence := command.Classify("lock the doors")
//	// variant == command.LockDoors, confidence == 1.0
//
//	params := command.ExtractParameters("navigate to the airport", command.Navigate)
//	// params["destination"] == "the airport"
//
// Everything in this package is pure and safe for concurrent use.
package command

import "fmt"

// Variant identifies one recognizable voice intent.
type Variant int

const (
	// Unknown is the explicit no-match result.
	Unknown Variant = iota
	HealthCheck
	LockDoors
	UnlockDoors
	StartEngine
	StopEngine
	ClimateControl
	LightsControl
	EmergencyCall
	HazardLights
	ScheduleMaintenance
	CheckFuelEfficiency
	FindServiceCenter
	Navigate
	CheckAlerts
	FuelLevel
	BatteryStatus
	TireStatus
	EngineStatus
	MaintenanceHistory
	Help
)

var variantNames = [...]string{
	Unknown:             "unknown",
	HealthCheck:         "healthCheck",
	LockDoors:           "lockDoors",
	UnlockDoors:         "unlockDoors",
	StartEngine:         "startEngine",
	StopEngine:          "stopEngine",
	ClimateControl:      "climateControl",
	LightsControl:       "lightsControl",
	EmergencyCall:       "emergencyCall",
	HazardLights:        "hazardLights",
	ScheduleMaintenance: "scheduleMaintenance",
	CheckFuelEfficiency: "checkFuelEfficiency",
	FindServiceCenter:   "findServiceCenter",
	Navigate:            "navigate",
	CheckAlerts:         "checkAlerts",
	FuelLevel:           "fuelLevel",
	BatteryStatus:       "batteryStatus",
	TireStatus:          "tireStatus",
	EngineStatus:        "engineStatus",
	MaintenanceHistory:  "maintenanceHistory",
	Help:                "help",
}

// String returns the camelCase name of the variant.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// Valid reports whether v is a declared variant (Unknown included).
func (v Variant) Valid() bool {
	return v >= 0 && int(v) < len(variantNames)
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("command: invalid variant %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariant looks up a variant by its String name.
func ParseVariant(name string) (Variant, error) {
	for i, n := range variantNames {
		if n == name {
			return Variant(i), nil
		}
	}
	return Unknown, fmt.Errorf("command: unknown variant name %q", name)
}

// Variants returns every declared variant except Unknown, in declaration order.
func Variants() []Variant {
	out := make([]Variant, 0, len(variantNames)-1)
	for i := 1; i < len(variantNames); i++ {
		out = append(out, Variant(i))
	}
	return out
}
