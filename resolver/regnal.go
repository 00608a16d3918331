package resolver

import (
	"fmt"
	"time"

	"github.com/openlexica/legisport/core"
)

// Monarch is one entry in the regnal calendar: the code used by the
// source's historical URL scheme plus the reign window. Regnal years
// run from the accession anniversary, not the calendar year.
type Monarch struct {
	Code  string
	Name  string
	Start time.Time
	End   time.Time // zero for the reign current at the numbering reform
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// monarchs lists reigns in chronological order. Commonwealth-era
// documents are not addressed by the source's regnal scheme; Charles II's
// regnal years are counted from 1649 as the source does.
var monarchs = []Monarch{
	{Code: "Hen8", Name: "Henry VIII", Start: day(1509, 4, 22), End: day(1547, 1, 28)},
	{Code: "Edw6", Name: "Edward VI", Start: day(1547, 1, 28), End: day(1553, 7, 6)},
	{Code: "Mary", Name: "Mary I", Start: day(1553, 7, 6), End: day(1558, 11, 17)},
	{Code: "Eliz1", Name: "Elizabeth I", Start: day(1558, 11, 17), End: day(1603, 3, 24)},
	{Code: "Ja1", Name: "James I", Start: day(1603, 3, 24), End: day(1625, 3, 27)},
	{Code: "Cha1", Name: "Charles I", Start: day(1625, 3, 27), End: day(1649, 1, 30)},
	{Code: "Cha2", Name: "Charles II", Start: day(1649, 1, 30), End: day(1685, 2, 6)},
	{Code: "Ja2", Name: "James II", Start: day(1685, 2, 6), End: day(1689, 2, 13)},
	{Code: "WillandMar", Name: "William and Mary", Start: day(1689, 2, 13), End: day(1694, 12, 28)},
	{Code: "Will3", Name: "William III", Start: day(1694, 12, 28), End: day(1702, 3, 8)},
	{Code: "Ann", Name: "Anne", Start: day(1702, 3, 8), End: day(1714, 8, 1)},
	{Code: "Geo1", Name: "George I", Start: day(1714, 8, 1), End: day(1727, 6, 11)},
	{Code: "Geo2", Name: "George II", Start: day(1727, 6, 11), End: day(1760, 10, 25)},
	{Code: "Geo3", Name: "George III", Start: day(1760, 10, 25), End: day(1820, 1, 29)},
	{Code: "Geo4", Name: "George IV", Start: day(1820, 1, 29), End: day(1830, 6, 26)},
	{Code: "Will4", Name: "William IV", Start: day(1830, 6, 26), End: day(1837, 6, 20)},
	{Code: "Vict", Name: "Victoria", Start: day(1837, 6, 20), End: day(1901, 1, 22)},
	{Code: "Edw7", Name: "Edward VII", Start: day(1901, 1, 22), End: day(1910, 5, 6)},
	{Code: "Geo5", Name: "George V", Start: day(1910, 5, 6), End: day(1936, 1, 20)},
	{Code: "Edw8", Name: "Edward VIII", Start: day(1936, 1, 20), End: day(1936, 12, 11)},
	{Code: "Geo6", Name: "George VI", Start: day(1936, 12, 11), End: day(1952, 2, 6)},
	{Code: "Eliz2", Name: "Elizabeth II", Start: day(1952, 2, 6)},
}

var monarchsByCode = func() map[string]Monarch {
	m := make(map[string]Monarch, len(monarchs))
	for _, mo := range monarchs {
		m[mo.Code] = mo
	}
	return m
}()

// EarliestYear is the first calendar year the regnal calendar covers.
var EarliestYear = monarchs[0].Start.Year()

// KnownMonarch reports whether a monarch code appears in the calendar.
func KnownMonarch(code string) bool {
	_, ok := monarchsByCode[code]
	return ok
}

// RegnalYearRef addresses one era-relative year of one reign.
type RegnalYearRef struct {
	Monarch string
	Year    int
}

// regnalYearAt returns the regnal year (1-based) containing d for a
// reign starting at accession. d must not precede accession.
func regnalYearAt(accession, d time.Time) int {
	n := d.Year() - accession.Year() + 1
	if n < 1 {
		return 1
	}
	anniv := accession.AddDate(n-1, 0, 0)
	if d.Before(anniv) {
		n--
	}
	return n
}

// RegnalYearsFor enumerates every (monarch, regnal year) overlapping a
// calendar year. The mapping is one-to-many: a regnal year boundary
// falls mid-calendar-year, and a reign change splits the year across
// two monarchs.
func RegnalYearsFor(calendarYear int) ([]RegnalYearRef, error) {
	if calendarYear < EarliestYear || calendarYear >= core.ReformYear {
		return nil, fmt.Errorf("%w: %d is outside the regnal calendar (%d-%d)",
			core.ErrInvalidYear, calendarYear, EarliestYear, core.ReformYear-1)
	}

	winStart := day(calendarYear, 1, 1)
	winEnd := day(calendarYear+1, 1, 1)

	var refs []RegnalYearRef
	for _, m := range monarchs {
		end := m.End
		if end.IsZero() {
			end = day(core.ReformYear, 1, 1)
		}
		if !m.Start.Before(winEnd) || !end.After(winStart) {
			continue
		}

		overlapStart := winStart
		if m.Start.After(overlapStart) {
			overlapStart = m.Start
		}
		overlapEnd := winEnd
		if end.Before(overlapEnd) {
			overlapEnd = end
		}

		first := regnalYearAt(m.Start, overlapStart)
		last := regnalYearAt(m.Start, overlapEnd.Add(-24*time.Hour))
		for y := first; y <= last; y++ {
			refs = append(refs, RegnalYearRef{Monarch: m.Code, Year: y})
		}
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no reign covers %d", core.ErrInvalidYear, calendarYear)
	}
	return refs, nil
}
