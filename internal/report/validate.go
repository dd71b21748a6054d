package report

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// submission is the typed projection of the aggregate checked before the
// report is sent to the platform. Field names match the wire contract.
type submission struct {
	ReportType     string `json:"reportType" validate:"required"`
	PersonInvolved struct {
		FullName     string `json:"fullName" validate:"required"`
		DOB          string `json:"dob" validate:"required"`
		LastSeenDate string `json:"lastSeenDate" validate:"required"`
	} `json:"personInvolved"`
	Location struct {
		Address string `json:"address" validate:"required"`
		City    string `json:"city" validate:"required"`
	} `json:"location"`
	PoliceStationID string `json:"policeStationId" validate:"required"`
}

// validateSubmission checks the serialized aggregate has everything a final
// submission needs.
func validateSubmission(doc []byte) error {
	var s submission
	if err := json.Unmarshal(doc, &s); err != nil {
		return fmt.Errorf("invalid report document: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}
