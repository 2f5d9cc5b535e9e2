package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashInput is the canonical form of everything a result depends on. Field
// order is fixed by the struct, slices are sorted where order carries no
// meaning, and nothing time-of-run related is included.
type hashInput struct {
	Period         PayPeriod          `json:"period"`
	Profile        *EmploymentProfile `json:"profile"`
	Segments       []ShiftSegment     `json:"segments"`
	Paid           []PaidLine         `json:"paid"`
	Flags          []QualityFlag      `json:"flags"`
	Evidence       []EvidenceRef      `json:"evidence"`
	RemediationDue *Date              `json:"remediation_due"`
	RuleSets       []string           `json:"rule_sets"`
	Settings       string             `json:"settings"`
}

// inputHash fingerprints an employee's inputs together with the award rule
// set versions in force over the period and the engine settings. Equal
// hashes mean a stored result can be reused as is.
func inputHash(in hashInput) (string, error) {
	in.Segments = SortSegments(in.Segments)
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
