package factory

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wage-compliance/compliance"
)

// =============================================================================
// AUDIT REQUEST DOCUMENT
// =============================================================================
//
// An audit request is what ingestion hands over for one organisation and one
// pay period:
//
//	{
//	  "organisation_id": "acme-childcare",
//	  "timezone": "Australia/Melbourne",
//	  "pay_period": {"id": "2025-03-F1", "start": "2025-03-03", "end": "2025-03-16"},
//	  "holidays": [{"date": "2025-03-10", "name": "Labour Day", "region": "VIC"}],
//	  "employees": [{
//	    "employee_id": "E-1001",
//	    "profiles": [{"employment_type": "casual", "classification": "level-3.1",
//	                  "base_rate": "28.50", "award_id": "MA000120"}],
//	    "shifts": [{"date": "2025-03-11", "start": "18:00", "end": "20:00"}],
//	    "paid": [{"component": "evening-penalty", "hours": "2", "rate": "35.625",
//	              "amount": "71.25", "includes_loading": true}],
//	    "flags": [{"kind": "low_confidence_extraction", "source": "ocr"}],
//	    "evidence": ["payslip-0311.pdf#p1"]
//	  }]
//	}
//
// Shift times are wall-clock times in the request timezone. An end at or
// before the start rolls over to the next day (an overnight shift).

type AuditJSON struct {
	OrganisationID string               `json:"organisation_id"`
	Timezone       string               `json:"timezone,omitempty"`
	PayPeriod      compliance.PayPeriod `json:"pay_period"`
	Holidays       []compliance.Holiday `json:"holidays,omitempty"`
	Employees      []EmployeeJSON       `json:"employees"`
}

type EmployeeJSON struct {
	EmployeeID     string                   `json:"employee_id"`
	Profiles       []ProfileJSON            `json:"profiles"`
	Shifts         []ShiftJSON              `json:"shifts"`
	Paid           []compliance.PaidLine    `json:"paid"`
	Flags          []compliance.QualityFlag `json:"flags,omitempty"`
	Evidence       []compliance.EvidenceRef `json:"evidence,omitempty"`
	RemediationDue string                   `json:"remediation_due,omitempty"`
}

type ProfileJSON struct {
	PayPeriodID         string          `json:"pay_period_id,omitempty"`
	EmploymentType      string          `json:"employment_type"`
	Classification      string          `json:"classification"`
	BaseRate            decimal.Decimal `json:"base_rate"`
	AwardID             string          `json:"award_id"`
	EnterpriseAgreement bool            `json:"enterprise_agreement,omitempty"`
	UploadedAt          time.Time       `json:"uploaded_at,omitempty"`
}

type ShiftJSON struct {
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	SourceRef string `json:"source_ref,omitempty"`
}

// AuditRequest is a decoded and validated audit request.
type AuditRequest struct {
	OrganisationID string
	Location       *time.Location
	Period         compliance.PayPeriod
	Holidays       []compliance.Holiday
	Inputs         []compliance.EmployeeInput
}

// Calendar returns the request's holidays as a calendar.
func (r AuditRequest) Calendar() compliance.HolidaySet {
	return compliance.NewHolidaySet(r.Holidays...)
}

// ParseAudit decodes an audit request document.
func ParseAudit(data []byte) (*AuditRequest, error) {
	var doc AuditJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse audit request: %w", err)
	}
	return doc.Build()
}

// DecodeAudit reads an audit request document from r.
func DecodeAudit(r io.Reader) (*AuditRequest, error) {
	var doc AuditJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse audit request: %w", err)
	}
	return doc.Build()
}

// Build converts the document into engine inputs.
func (a AuditJSON) Build() (*AuditRequest, error) {
	if err := a.PayPeriod.Validate(); err != nil {
		return nil, fmt.Errorf("pay_period: %w", err)
	}
	loc := time.UTC
	if a.Timezone != "" {
		l, err := time.LoadLocation(a.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		loc = l
	}

	req := &AuditRequest{
		OrganisationID: a.OrganisationID,
		Location:       loc,
		Period:         a.PayPeriod,
		Holidays:       a.Holidays,
	}
	seen := make(map[string]bool)
	for _, e := range a.Employees {
		if e.EmployeeID == "" {
			return nil, fmt.Errorf("employee without employee_id")
		}
		if seen[e.EmployeeID] {
			return nil, fmt.Errorf("employee %s listed twice", e.EmployeeID)
		}
		seen[e.EmployeeID] = true

		in, err := e.build(a.PayPeriod.ID, loc)
		if err != nil {
			return nil, fmt.Errorf("employee %s: %w", e.EmployeeID, err)
		}
		req.Inputs = append(req.Inputs, in)
	}
	return req, nil
}

func (e EmployeeJSON) build(period compliance.PayPeriodID, loc *time.Location) (compliance.EmployeeInput, error) {
	id := compliance.EmployeeID(e.EmployeeID)
	in := compliance.EmployeeInput{
		EmployeeID: id,
		Paid:       e.Paid,
		Flags:      e.Flags,
		Evidence:   e.Evidence,
	}
	for _, p := range e.Profiles {
		et := compliance.EmploymentType(p.EmploymentType)
		if !et.Valid() {
			return in, fmt.Errorf("unknown employment type %q", p.EmploymentType)
		}
		profilePeriod := compliance.PayPeriodID(p.PayPeriodID)
		if profilePeriod == "" {
			profilePeriod = period
		}
		in.Profiles = append(in.Profiles, compliance.EmploymentProfile{
			EmployeeID:          id,
			PayPeriodID:         profilePeriod,
			EmploymentType:      et,
			Classification:      p.Classification,
			BaseRate:            p.BaseRate,
			AwardID:             compliance.AwardID(p.AwardID),
			EnterpriseAgreement: p.EnterpriseAgreement,
			UploadedAt:          p.UploadedAt,
		})
	}
	for i, s := range e.Shifts {
		seg, err := s.segment(id, loc)
		if err != nil {
			return in, fmt.Errorf("shift %d: %w", i+1, err)
		}
		in.Segments = append(in.Segments, seg)
	}
	if e.RemediationDue != "" {
		due, err := compliance.ParseDate(e.RemediationDue)
		if err != nil {
			return in, fmt.Errorf("remediation_due: %w", err)
		}
		in.RemediationDue = &due
	}
	return in, nil
}

func (s ShiftJSON) segment(employee compliance.EmployeeID, loc *time.Location) (compliance.ShiftSegment, error) {
	date, err := compliance.ParseDate(s.Date)
	if err != nil {
		return compliance.ShiftSegment{}, err
	}
	start, err := compliance.ParseClock(s.Start)
	if err != nil {
		return compliance.ShiftSegment{}, err
	}
	end, err := compliance.ParseClock(s.End)
	if err != nil {
		return compliance.ShiftSegment{}, err
	}
	endDate := date
	if end <= start {
		endDate = date.AddDays(1)
	}
	return compliance.ShiftSegment{
		EmployeeID: employee,
		Start:      start.On(date, loc),
		End:        end.On(endDate, loc),
		SourceRef:  s.SourceRef,
	}, nil
}
