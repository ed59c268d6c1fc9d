package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veil/pkg/domain-errors"
)

// TestParsePurpose_Invariants validates the parsing invariant:
// "purposes must come from the fixed catalog allowlist".
//
// Justification: ParsePurpose is a trust boundary; everything downstream
// assumes a Purpose value is one of the five supported purposes.
func TestParsePurpose_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePurpose("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown purpose", func(t *testing.T) {
		_, err := ParsePurpose("world_domination")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects case variants", func(t *testing.T) {
		_, err := ParsePurpose("Cohort_Assignment")
		require.Error(t, err)
	})

	t.Run("accepts every catalog purpose", func(t *testing.T) {
		for _, d := range Catalog() {
			p, err := ParsePurpose(d.Purpose.String())
			require.NoError(t, err)
			assert.Equal(t, d.Purpose, p)
		}
	})
}

func TestLawfulBasis_IsValid(t *testing.T) {
	valid := []LawfulBasis{
		BasisConsent, BasisContract, BasisLegalObligation,
		BasisVitalInterests, BasisPublicTask, BasisLegitimateInterests,
	}
	for _, b := range valid {
		assert.True(t, b.IsValid(), "basis %s", b)
	}
	assert.False(t, LawfulBasis("invalid_basis").IsValid())
	assert.False(t, LawfulBasis("").IsValid())
}

// TestCatalog verifies the static purpose catalog shape the consent form and
// status summaries are built from.
func TestCatalog(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, 5)

	t.Run("required purposes are exactly security and legal", func(t *testing.T) {
		required := map[Purpose]bool{}
		for _, d := range catalog {
			if d.Required {
				required[d.Purpose] = true
			}
		}
		assert.Equal(t, map[Purpose]bool{
			PurposeSecurityMonitoring: true,
			PurposeLegalCompliance:    true,
		}, required)
	})

	t.Run("every entry is fully described", func(t *testing.T) {
		for _, d := range catalog {
			assert.True(t, d.Purpose.IsValid())
			assert.NotEmpty(t, d.Name)
			assert.NotEmpty(t, d.Description)
			assert.True(t, d.LawfulBasis.IsValid())
			assert.NotEmpty(t, d.DataTypes)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		mutated := Catalog()
		mutated[0].Name = "changed"
		assert.NotEqual(t, "changed", Catalog()[0].Name)
	})
}

func TestDescriptorFor(t *testing.T) {
	d, ok := DescriptorFor(PurposeCohortAssignment)
	require.True(t, ok)
	assert.Equal(t, "Cohort Assignment", d.Name)

	_, ok = DescriptorFor(Purpose("nonexistent"))
	assert.False(t, ok)
}
