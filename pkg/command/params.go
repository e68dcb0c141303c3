package command

// Parameter keys used by Params.Map.
const (
	KeyDestination   = "destination"
	KeyServiceType   = "serviceType"
	KeyTiming        = "timing"
	KeyLocation      = "location"
	KeyTemperature   = "temperature"
	KeyAction        = "action"
	KeyLightType     = "lightType"
	KeyEmergencyType = "emergencyType"
)

// Action is a requested on/off/set operation.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
	ActionSet Action = "set"
)

// LightType names the lights a lights command targets.
type LightType string

const (
	LightHeadlights LightType = "headlights"
	LightParking    LightType = "parking"
	LightInterior   LightType = "interior"
	LightFog        LightType = "fog"
	LightAll        LightType = "all"
)

// EmergencyType classifies an emergency call.
type EmergencyType string

const (
	EmergencyAccident  EmergencyType = "accident"
	EmergencyBreakdown EmergencyType = "breakdown"
	EmergencyMedical   EmergencyType = "medical"
	EmergencyTheft     EmergencyType = "theft"
	EmergencyGeneral   EmergencyType = "general"
)

// ServiceType is a maintenance category.
type ServiceType string

const (
	ServiceOilChange   ServiceType = "oil change"
	ServiceTire        ServiceType = "tire service"
	ServiceBrake       ServiceType = "brake service"
	ServiceBattery     ServiceType = "battery service"
	ServiceEngine      ServiceType = "engine service"
	ServiceMaintenance ServiceType = "general maintenance"
)

// Params holds the arguments extracted for one variant.
// The set of implementations is closed; use a type switch to consume them.
type Params interface {
	// Map renders the parameters as a string keyed map. Absent values are omitted.
	Map() map[string]any
	params()
}

// NoParams is returned for variants without arguments and when nothing can be extracted.
type NoParams struct{}

func (NoParams) Map() map[string]any { return map[string]any{} }
func (NoParams) params()             {}

// NavigateParams are the arguments of Navigate.
type NavigateParams struct {
	Destination string `json:"destination,omitempty"`
}

func (p NavigateParams) Map() map[string]any {
	m := map[string]any{}
	putString(m, KeyDestination, p.Destination)
	return m
}
func (NavigateParams) params() {}

// MaintenanceParams are the arguments of ScheduleMaintenance.
type MaintenanceParams struct {
	ServiceType ServiceType `json:"serviceType,omitempty"`
	Timing      string      `json:"timing,omitempty"`
}

func (p MaintenanceParams) Map() map[string]any {
	m := map[string]any{}
	putString(m, KeyServiceType, string(p.ServiceType))
	putString(m, KeyTiming, p.Timing)
	return m
}
func (MaintenanceParams) params() {}

// ServiceCenterParams are the arguments of FindServiceCenter.
type ServiceCenterParams struct {
	ServiceType ServiceType `json:"serviceType,omitempty"`
	Location    string      `json:"location,omitempty"`
}

func (p ServiceCenterParams) Map() map[string]any {
	m := map[string]any{}
	putString(m, KeyServiceType, string(p.ServiceType))
	putString(m, KeyLocation, p.Location)
	return m
}
func (ServiceCenterParams) params() {}

// ClimateParams are the arguments of ClimateControl.
// Temperature is in degrees Fahrenheit; zero means not extracted.
type ClimateParams struct {
	Temperature int    `json:"temperature,omitempty"`
	Action      Action `json:"action,omitempty"`
}

// HasTemperature reports whether a temperature was extracted.
func (p ClimateParams) HasTemperature() bool {
	return p.Temperature != 0
}

func (p ClimateParams) Map() map[string]any {
	m := map[string]any{}
	if p.HasTemperature() {
		m[KeyTemperature] = p.Temperature
	}
	putString(m, KeyAction, string(p.Action))
	return m
}
func (ClimateParams) params() {}

// LightsParams are the arguments of LightsControl.
type LightsParams struct {
	LightType LightType `json:"lightType,omitempty"`
	Action    Action    `json:"action,omitempty"`
}

func (p LightsParams) Map() map[string]any {
	m := map[string]any{}
	putString(m, KeyLightType, string(p.LightType))
	putString(m, KeyAction, string(p.Action))
	return m
}
func (LightsParams) params() {}

// EmergencyParams are the arguments of EmergencyCall.
type EmergencyParams struct {
	EmergencyType EmergencyType `json:"emergencyType,omitempty"`
}

func (p EmergencyParams) Map() map[string]any {
	m := map[string]any{}
	putString(m, KeyEmergencyType, string(p.EmergencyType))
	return m
}
func (EmergencyParams) params() {}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
