package voice

import (
	"fmt"

	"github.com/teslashibe/go-autovoice/pkg/command"
)

// Confirmation returns the spoken confirmation for a recognized command.
// Unknown yields "".
func Confirmation(v command.Variant, p command.Params) string {
	switch v {
	case command.HealthCheck:
		return "Running a vehicle health check."
	case command.LockDoors:
		return "Locking the doors."
	case command.UnlockDoors:
		return "Unlocking the doors."
	case command.StartEngine:
		return "Starting the engine."
	case command.StopEngine:
		return "Stopping the engine."
	case command.ClimateControl:
		return climateConfirmation(p)
	case command.LightsControl:
		return lightsConfirmation(p)
	case command.EmergencyCall:
		return emergencyConfirmation(p)
	case command.HazardLights:
		return "Turning on the hazard lights."
	case command.ScheduleMaintenance:
		return maintenanceConfirmation(p)
	case command.CheckFuelEfficiency:
		return "Checking your fuel efficiency."
	case command.FindServiceCenter:
		return serviceCenterConfirmation(p)
	case command.Navigate:
		if np, ok := p.(command.NavigateParams); ok && np.Destination != "" {
			return fmt.Sprintf("Navigating to %s.", np.Destination)
		}
		return "Where would you like to go?"
	case command.CheckAlerts:
		return "Checking vehicle alerts."
	case command.FuelLevel:
		return "Checking the fuel level."
	case command.BatteryStatus:
		return "Checking the battery status."
	case command.TireStatus:
		return "Checking the tire pressure."
	case command.EngineStatus:
		return "Checking the engine status."
	case command.MaintenanceHistory:
		return "Opening your maintenance history."
	case command.Help:
		return "You can ask me to lock the doors, start the engine, set the temperature, " +
			"navigate somewhere, or check your vehicle's health."
	default:
		return ""
	}
}

func climateConfirmation(p command.Params) string {
	cp, _ := p.(command.ClimateParams)
	switch {
	case cp.HasTemperature():
		return fmt.Sprintf("Setting the temperature to %d degrees.", cp.Temperature)
	case cp.Action == command.ActionOn:
		return "Turning the climate control on."
	case cp.Action == command.ActionOff:
		return "Turning the climate control off."
	default:
		return "Adjusting the climate control."
	}
}

var lightNames = map[command.LightType]string{
	command.LightHeadlights: "the headlights",
	command.LightParking:    "the parking lights",
	command.LightInterior:   "the interior lights",
	command.LightFog:        "the fog lights",
	command.LightAll:        "the lights",
}

func lightsConfirmation(p command.Params) string {
	lp, _ := p.(command.LightsParams)
	name, ok := lightNames[lp.LightType]
	if !ok {
		name = "the lights"
	}
	switch lp.Action {
	case command.ActionOn:
		return "Turning on " + name + "."
	case command.ActionOff:
		return "Turning off " + name + "."
	default:
		return "Toggling " + name + "."
	}
}

var emergencyReasons = map[command.EmergencyType]string{
	command.EmergencyAccident:  "an accident",
	command.EmergencyBreakdown: "a breakdown",
	command.EmergencyMedical:   "a medical emergency",
	command.EmergencyTheft:     "a theft",
}

func emergencyConfirmation(p command.Params) string {
	ep, _ := p.(command.EmergencyParams)
	if reason, ok := emergencyReasons[ep.EmergencyType]; ok {
		return "Calling emergency services to report " + reason + "."
	}
	return "Calling emergency services."
}

func maintenanceConfirmation(p command.Params) string {
	mp, _ := p.(command.MaintenanceParams)
	what := "maintenance"
	if mp.ServiceType != "" {
		what = string(mp.ServiceType)
	}
	if mp.Timing != "" {
		return fmt.Sprintf("Scheduling %s for %s.", what, mp.Timing)
	}
	return fmt.Sprintf("Scheduling %s.", what)
}

func serviceCenterConfirmation(p command.Params) string {
	sp, _ := p.(command.ServiceCenterParams)
	msg := "Finding a service center"
	if sp.ServiceType != "" {
		msg += " for " + string(sp.ServiceType)
	}
	if sp.Location != "" {
		msg += " near " + sp.Location
	}
	return msg + "."
}
