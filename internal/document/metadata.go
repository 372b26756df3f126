package document

import (
	"fmt"
	"strings"
	"time"
)

// CaseStatus is the workflow state of a case.
type CaseStatus string

const (
	StatusPending    CaseStatus = "pending"
	StatusInProgress CaseStatus = "in-progress"
	StatusCompleted  CaseStatus = "completed"
	StatusDelivered  CaseStatus = "delivered"
)

// CaseStatuses lists the statuses in workflow order.
var CaseStatuses = []CaseStatus{StatusPending, StatusInProgress, StatusCompleted, StatusDelivered}

func (s CaseStatus) Valid() bool {
	for _, v := range CaseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// EntryDateLayout is the format of CaseInfo.EntryDate.
const EntryDateLayout = "2006-01-02"

// CaseInfo is the patient-level metadata of a case.
type CaseInfo struct {
	PatientName string     `json:"patientName"`
	DentistName string     `json:"dentistName"`
	EntryDate   string     `json:"entryDate"`
	Status      CaseStatus `json:"caseStatus"`
}

// NewCaseInfo returns empty case metadata dated now.
func NewCaseInfo(now time.Time) CaseInfo {
	return CaseInfo{EntryDate: now.Format(EntryDateLayout), Status: StatusPending}
}

// Validate checks the enumerated fields and the date format.
func (c CaseInfo) Validate() error {
	if !c.Status.Valid() {
		return fmt.Errorf("unknown case status %q", c.Status)
	}
	if c.EntryDate != "" {
		if _, err := time.Parse(EntryDateLayout, c.EntryDate); err != nil {
			return fmt.Errorf("entry date %q: %w", c.EntryDate, err)
		}
	}
	return nil
}

// AnalysisType is the kind of diagnostic image.
type AnalysisType string

const (
	AnalysisPanoramic AnalysisType = "panoramic"
	AnalysisLateral   AnalysisType = "lateral"
	AnalysisIntraoral AnalysisType = "intraoral"
	AnalysisModel     AnalysisType = "model"
	AnalysisCBCT      AnalysisType = "cbct"
	AnalysisOther     AnalysisType = "other"
)

var AnalysisTypes = []AnalysisType{
	AnalysisPanoramic, AnalysisLateral, AnalysisIntraoral, AnalysisModel, AnalysisCBCT, AnalysisOther,
}

// Prognosis is the clinician's outlook for the treatment.
type Prognosis string

const (
	PrognosisExcellent Prognosis = "excellent"
	PrognosisGood      Prognosis = "good"
	PrognosisFair      Prognosis = "fair"
	PrognosisPoor      Prognosis = "poor"
)

var Prognoses = []Prognosis{PrognosisExcellent, PrognosisGood, PrognosisFair, PrognosisPoor}

// Analysis is the per-image clinical write-up. Type and Prognosis may be
// empty when not yet chosen.
type Analysis struct {
	Title                string       `json:"title"`
	Type                 AnalysisType `json:"analysisType"`
	ClinicalObservations string       `json:"clinicalObservations"`
	Diagnosis            string       `json:"diagnosis"`
	TreatmentPlan        string       `json:"treatmentPlan"`
	Prognosis            Prognosis    `json:"prognosis"`
	Recommendations      string       `json:"recommendations"`
}

// Validate checks the enumerated fields.
func (a Analysis) Validate() error {
	if a.Type != "" && !contains(AnalysisTypes, a.Type) {
		return fmt.Errorf("unknown analysis type %q", a.Type)
	}
	if a.Prognosis != "" && !contains(Prognoses, a.Prognosis) {
		return fmt.Errorf("unknown prognosis %q", a.Prognosis)
	}
	return nil
}

// Analysed reports whether a diagnosis has been written.
func (a Analysis) Analysed() bool {
	return strings.TrimSpace(a.Diagnosis) != ""
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
