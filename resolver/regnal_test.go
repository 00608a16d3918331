package resolver

import (
	"testing"

	"github.com/openlexica/legisport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegnalYearsFor_MidYearBoundary(t *testing.T) {
	// George III acceded 25 Oct 1760, so his regnal year rolls over
	// every 25 October: 1801 spans regnal years 41 and 42.
	refs, err := RegnalYearsFor(1801)
	require.NoError(t, err)

	assert.ElementsMatch(t, []RegnalYearRef{
		{Monarch: "Geo3", Year: 41},
		{Monarch: "Geo3", Year: 42},
	}, refs)
}

func TestRegnalYearsFor_ReignChange(t *testing.T) {
	// William IV died 20 Jun 1837; Victoria acceded the same day.
	refs, err := RegnalYearsFor(1837)
	require.NoError(t, err)

	assert.Contains(t, refs, RegnalYearRef{Monarch: "Will4", Year: 7})
	assert.Contains(t, refs, RegnalYearRef{Monarch: "Vict", Year: 1})

	for _, ref := range refs {
		assert.True(t, ref.Monarch == "Will4" || ref.Monarch == "Vict",
			"unexpected monarch %s for 1837", ref.Monarch)
	}
}

func TestRegnalYearsFor_AccessionYearStartsAtOne(t *testing.T) {
	refs, err := RegnalYearsFor(1952)
	require.NoError(t, err)

	assert.Contains(t, refs, RegnalYearRef{Monarch: "Eliz2", Year: 1})
	assert.Contains(t, refs, RegnalYearRef{Monarch: "Geo6", Year: 16})
}

func TestRegnalYearsFor_NoDuplicates(t *testing.T) {
	for year := EarliestYear; year < core.ReformYear; year++ {
		refs, err := RegnalYearsFor(year)
		require.NoError(t, err, "year %d", year)
		require.NotEmpty(t, refs, "year %d", year)

		seen := make(map[RegnalYearRef]struct{}, len(refs))
		for _, ref := range refs {
			_, dup := seen[ref]
			require.False(t, dup, "duplicate ref %+v for year %d", ref, year)
			seen[ref] = struct{}{}
		}
	}
}

func TestRegnalYearsFor_OutOfRange(t *testing.T) {
	_, err := RegnalYearsFor(1400)
	assert.ErrorIs(t, err, core.ErrInvalidYear)

	_, err = RegnalYearsFor(core.ReformYear)
	assert.ErrorIs(t, err, core.ErrInvalidYear, "reform-era years are not regnal")
}

func TestKnownMonarch(t *testing.T) {
	assert.True(t, KnownMonarch("Geo3"))
	assert.True(t, KnownMonarch("WillandMar"))
	assert.False(t, KnownMonarch("Geo9"))
	assert.False(t, KnownMonarch(""))
}
