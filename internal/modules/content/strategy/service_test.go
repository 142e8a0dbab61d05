package strategy

import (
	"testing"

	"github.com/contentflow/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberAngles(t *testing.T) {
	got, err := NumberAngles([]models.Angle{
		{Title: "b"},
		{Number: 3, Title: "three"},
		{Title: "c"},
		{Number: 1, Title: "one"},
	})
	require.NoError(t, err)
	var numbers []int
	var titles []string
	for _, a := range got {
		numbers = append(numbers, a.Number)
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []int{1, 3, 4, 5}, numbers)
	assert.Equal(t, []string{"one", "three", "b", "c"}, titles)
}

func TestNumberAngles_Rejects(t *testing.T) {
	_, err := NumberAngles([]models.Angle{{Number: 2}, {Number: 2}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NumberAngles([]models.Angle{{Number: -1}})
	assert.Error(t, err)
}

func TestNumberAngles_Empty(t *testing.T) {
	got, err := NumberAngles(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
