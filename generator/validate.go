package generator

import (
	"fmt"
	"slices"
	"strings"
)

// BrandTones are the supported values of Inputs.BrandTone.
var BrandTones = []string{"Professional", "Warm", "Bold", "Friendly", "Formal", "Concise"}

// ValidationError lists every problem found in a set of inputs.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid inputs: " + strings.Join(e.Problems, "; ")
}

// ValidateInputs checks the required fields and basic constraints. It returns
// nil or a *ValidationError.
func ValidateInputs(in Inputs) error {
	var problems []string
	required := []struct {
		key, value string
	}{
		{"company_name", in.CompanyName},
		{"client_name", in.ClientName},
		{"project_title", in.ProjectTitle},
		{"goals", in.Goals},
		{"budget", in.Budget},
		{"timeline", in.Timeline},
		{"brand_tone", in.BrandTone},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, "Missing required field: "+f.key)
		}
	}
	if in.BrandTone != "" && !slices.Contains(BrandTones, in.BrandTone) {
		problems = append(problems, fmt.Sprintf("Unsupported brand tone: %s", in.BrandTone))
	}
	if t := strings.TrimSpace(in.Timeline); t != "" && len(t) < 3 {
		problems = append(problems, "Timeline appears too short.")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SanityCheck flags contradictions between the inputs and the drafted
// document for the user to confirm.
func SanityCheck(doc Document, in Inputs) []string {
	var flags []string
	pricing, _ := doc.Get(SectionPricing)
	if strings.TrimSpace(in.Budget) != "" && strings.Contains(strings.ToLower(pricing), "free") {
		flags = append(flags, "Pricing mentions 'free' while a budget is specified.")
	}
	return flags
}
