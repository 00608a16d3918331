// Package resolver maps (document type, year range) requests to
// candidate document identifiers across the source's two numbering
// epochs.
//
// Years at or after the numbering reform use calendar-year citation and
// a paginated listing feed per (type, year). Earlier years are cited by
// monarch and regnal year; a calendar year maps to one or more regnal
// years (a regnal year boundary falls mid-year, and a reign change
// splits the year between monarchs), so the resolver enumerates every
// overlapping regnal year, walks each listing feed, and deduplicates
// the merged results.
package resolver
