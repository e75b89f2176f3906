// Package messages derives the user-facing explanation for an empty
// result set from the active filters and the server-reported bounds.
package messages

import (
	"strconv"
	"strings"

	"github.com/example/ride-search/internal/models"
)

// NoResultsFallback is returned when no filter narrows the search: the
// criteria themselves simply have no match.
const NoResultsFallback = "Aucun trajet ne correspond à ces critères."

const filterPrefix = "Aucun trajet ne correspond à vos filtres : "

// BuildNoResults produces one clause per filter that is currently more
// restrictive than the global bound, in a fixed order (electric, price,
// duration, rating), joined with a French conjunction before the last
// clause. The same filter set always yields the same sentence.
func BuildNoResults(filters models.FilterSet, meta models.FiltersMeta) string {
	var clauses []string

	if filters.ElectricOnly != nil && *filters.ElectricOnly {
		clauses = append(clauses, "uniquement des véhicules électriques")
	}
	if c := rangeClause("un prix", "crédits", filters.PriceMin, filters.PriceMax, meta.Price); c != "" {
		clauses = append(clauses, c)
	}
	if c := rangeClause("une durée", "minutes", filters.DurationMin, filters.DurationMax, meta.Duration); c != "" {
		clauses = append(clauses, c)
	}
	if filters.RatingMin != nil && *filters.RatingMin > ratingFloor(meta) {
		clauses = append(clauses, "une note d'au moins "+formatNumber(*filters.RatingMin)+" étoiles")
	}

	if len(clauses) == 0 {
		return NoResultsFallback
	}
	return filterPrefix + joinFrench(clauses) + "."
}

// rangeClause describes a numeric bound pair, mentioning only the sides
// tighter than the global range.
func rangeClause(subject, unit string, min, max *float64, bound models.Range) string {
	minTight := min != nil && *min > bound.Min
	maxTight := max != nil && *max < bound.Max
	switch {
	case minTight && maxTight:
		return subject + " entre " + formatNumber(*min) + " et " + formatNumber(*max) + " " + unit
	case maxTight:
		return subject + " maximum de " + formatNumber(*max) + " " + unit
	case minTight:
		return subject + " minimum de " + formatNumber(*min) + " " + unit
	}
	return ""
}

func joinFrench(clauses []string) string {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return strings.Join(clauses[:len(clauses)-1], ", ") + " et " + clauses[len(clauses)-1]
}

func ratingFloor(meta models.FiltersMeta) float64 {
	if meta.Rating != nil {
		return meta.Rating.Min
	}
	return 0
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
