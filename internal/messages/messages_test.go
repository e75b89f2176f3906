package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/ride-search/internal/models"
)

func meta() models.FiltersMeta {
	return models.FiltersMeta{
		Price:    models.Range{Min: 0, Max: 60},
		Duration: models.Range{Min: 30, Max: 480},
	}
}

func TestNoFiltersYieldsFallback(t *testing.T) {
	got := BuildNoResults(models.FilterSet{}, meta())
	assert.Equal(t, NoResultsFallback, got)
}

func TestElectricAndPriceClausesInFixedOrder(t *testing.T) {
	f := models.FilterSet{
		ElectricOnly: models.Bool(true),
		PriceMax:     models.Float(30),
	}
	first := BuildNoResults(f, meta())
	assert.Contains(t, first, "électriques")
	assert.Contains(t, first, "30")
	assert.Less(t, strings.Index(first, "électriques"), strings.Index(first, "prix"))

	// Deterministic: same filter set, same sentence, every invocation.
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildNoResults(f, meta()))
	}
}

func TestSingleClauseHasNoConjunction(t *testing.T) {
	got := BuildNoResults(models.FilterSet{PriceMax: models.Float(30)}, meta())
	assert.Equal(t, "Aucun trajet ne correspond à vos filtres : un prix maximum de 30 crédits.", got)
}

func TestBothBoundsTighter(t *testing.T) {
	f := models.FilterSet{
		PriceMin: models.Float(10),
		PriceMax: models.Float(30),
	}
	got := BuildNoResults(f, meta())
	assert.Contains(t, got, "un prix entre 10 et 30 crédits")
}

func TestFilterEqualToGlobalBoundIsNotAClause(t *testing.T) {
	// priceMax equal to the global max narrows nothing.
	f := models.FilterSet{PriceMax: models.Float(60)}
	assert.Equal(t, NoResultsFallback, BuildNoResults(f, meta()))
}

func TestAllFourClausesJoined(t *testing.T) {
	f := models.FilterSet{
		ElectricOnly: models.Bool(true),
		PriceMax:     models.Float(25),
		DurationMax:  models.Float(120),
		RatingMin:    models.Float(4),
	}
	got := BuildNoResults(f, meta())
	assert.Contains(t, got, "électriques")
	assert.Contains(t, got, "prix")
	assert.Contains(t, got, "durée")
	assert.Contains(t, got, "note")
	// The conjunction sits before the final clause only.
	assert.Contains(t, got, " et une note d'au moins 4 étoiles.")
}

func TestRatingFloorFromMeta(t *testing.T) {
	m := meta()
	m.Rating = &models.Range{Min: 3, Max: 5}
	// A rating floor at the global minimum is not a restriction.
	got := BuildNoResults(models.FilterSet{RatingMin: models.Float(3)}, m)
	assert.Equal(t, NoResultsFallback, got)

	got = BuildNoResults(models.FilterSet{RatingMin: models.Float(4.5)}, m)
	assert.Contains(t, got, "4.5 étoiles")
}
