// Package report manages the multi-step report composition workflow:
// step sequencing, in-memory form-state merging, save-as-draft persistence,
// resume-from-draft rehydration, and final submission.
package report

// TotalSteps is the number of wizard steps.
const TotalSteps = 7

// Step identifies one wizard step. Steps are strictly linear going forward;
// jumping backward to any earlier step is allowed.
type Step int

const (
	StepConfirmation Step = iota + 1
	StepBasicInfo
	StepPersonDetails
	StepPhysicalDescription
	StepLocation
	StepPoliceStation
	StepPreview
)

func (s Step) String() string {
	switch s {
	case StepConfirmation:
		return "confirmation"
	case StepBasicInfo:
		return "basic_info"
	case StepPersonDetails:
		return "person_details"
	case StepPhysicalDescription:
		return "physical_description"
	case StepLocation:
		return "location"
	case StepPoliceStation:
		return "police_station"
	case StepPreview:
		return "preview"
	default:
		return "unknown"
	}
}
