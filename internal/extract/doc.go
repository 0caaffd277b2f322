// Package extract pulls typed fields out of category, product and review
// pages. Every function is pure: expected absences are reported as zero
// values, structural mismatches as *catalog.ExtractionError.
package extract
