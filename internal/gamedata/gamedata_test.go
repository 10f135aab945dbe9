package gamedata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesAllClasses(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.Len(t, d.Classes(), 13)

	// Classes come back sorted by key so the picker ordering is stable.
	prev := ""
	for _, c := range d.Classes() {
		assert.Greater(t, c.Name, prev)
		assert.NotEmpty(t, c.Specs)
		prev = c.Name
	}
}

func TestSpecsFor(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	specs, ok := d.SpecsFor("Death_Knight")
	require.True(t, ok)
	assert.Equal(t, []string{"Blood", "Frost", "Unholy"}, specs)

	_, ok = d.SpecsFor("Bard")
	assert.False(t, ok)
}

func TestValidClassSpec(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.True(t, d.ValidClassSpec("Mage", "Fire"))
	assert.False(t, d.ValidClassSpec("Mage", "Blood"))
	assert.False(t, d.ValidClassSpec("Bard", "Fire"))
}

func TestValidEncounterAndRegion(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.True(t, d.ValidEncounter(3135))
	assert.False(t, d.ValidEncounter(9999))

	assert.True(t, d.ValidRegion("EU"))
	assert.True(t, d.ValidRegion("all"))
	assert.False(t, d.ValidRegion("MOON"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Death Knight", DisplayName("Death_Knight"))
	assert.Equal(t, "Mage", DisplayName("Mage"))
}
