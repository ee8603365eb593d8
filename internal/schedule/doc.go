// Package schedule decides whether a tenant's post is due.
//
// A Cadence is one of three shapes: unset, daily at HH:MM in the tenant's
// zone, or a fixed interval. Evaluate is a pure function of the cadence, the
// last-fired marker and "now"; it never reads the clock itself.
//
// Backlogs never burst: a tenant that missed several occurrences fires once
// and then resumes its normal cadence.
package schedule
