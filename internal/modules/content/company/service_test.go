package company

import (
	"testing"

	"github.com/contentflow/core/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPlatforms(t *testing.T) {
	assert.Equal(t, models.StringArray{"twitter", "linkedin", "blog"},
		canonicalPlatforms([]string{"Blog", "LinkedIn", "myspace", "twitter", "blog"}))
	assert.Empty(t, canonicalPlatforms(nil))
}

func TestBrandOf(t *testing.T) {
	c := &models.CompanyModel{
		Name:     "Acme",
		Audience: "founders",
		Website:  "https://acme.test",
		Values:   models.StringArray{"speed"},
	}
	b := BrandOf(c)
	assert.Equal(t, "Acme", b.Name)
	assert.Equal(t, "founders", b.Audience)
	assert.Equal(t, []string{"speed"}, b.Values)
}
