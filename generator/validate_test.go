package generator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputs(t *testing.T) {
	assert.NoError(t, ValidateInputs(testInputs()))

	err := ValidateInputs(Inputs{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{
		"Missing required field: company_name",
		"Missing required field: client_name",
		"Missing required field: project_title",
		"Missing required field: goals",
		"Missing required field: budget",
		"Missing required field: timeline",
		"Missing required field: brand_tone",
	}, verr.Problems)

	in := testInputs()
	in.BrandTone = "Casual"
	in.Timeline = "2w"
	err = ValidateInputs(in)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Unsupported brand tone: Casual", "Timeline appears too short."}, verr.Problems)
	assert.Contains(t, err.Error(), "Unsupported brand tone: Casual")
}

func TestSanityCheck(t *testing.T) {
	doc := NewDocument("x")
	require.NoError(t, doc.Set(SectionPricing, "Fixed fee of $50k."))
	assert.Empty(t, SanityCheck(doc, testInputs()))

	require.NoError(t, doc.Set(SectionPricing, "Discovery is FREE."))
	assert.Len(t, SanityCheck(doc, testInputs()), 1)

	in := testInputs()
	in.Budget = ""
	assert.Empty(t, SanityCheck(doc, in))
}
