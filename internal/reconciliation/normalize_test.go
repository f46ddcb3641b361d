package reconciliation

import (
	"testing"

	"github.com/clbanning/mxj/v2"
	"github.com/fortuna/matatena/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseThings(t *testing.T, body string) []catalog.CatalogItem {
	t.Helper()
	doc, err := mxj.NewMapXml([]byte(body))
	require.NoError(t, err)
	return catalog.ParseThings(doc)
}

const catanXML = `<items>
  <item type="boardgame" id="13">
    <thumbnail>https://cf.geekdo-images.com/13_t.jpg</thumbnail>
    <image>https://cf.geekdo-images.com/13.jpg</image>
    <name type="primary" sortindex="1" value="CATAN"/>
    <name type="alternate" sortindex="1" value="Die Siedler von Catan"/>
    <yearpublished value="1995"/>
    <minplayers value="3"/>
    <maxplayers value="4"/>
    <playingtime value="120"/>
    <link type="boardgamecategory" id="1021" value="Economic"/>
    <link type="boardgamedesigner" id="11" value="Klaus Teuber"/>
    <link type="boardgameartist" id="12" value="Volkan Baga"/>
    <link type="boardgameartist" id="13" value="Tanja Donner"/>
    <link type="boardgamepublisher" id="37" value="KOSMOS"/>
    <statistics page="1">
      <ratings>
        <usersrated value="120000"/>
        <averageweight value="2.2994"/>
      </ratings>
    </statistics>
  </item>
</items>`

func TestNormalizeFullItem(t *testing.T) {
	items := parseThings(t, catanXML)
	require.Len(t, items, 1)

	record := Normalize(items[0])

	assert.Equal(t, "13", record.ID)
	assert.Equal(t, "CATAN", record.Name)
	assert.Equal(t, "https://cf.geekdo-images.com/13.jpg", record.Image)
	assert.Equal(t, "https://cf.geekdo-images.com/13_t.jpg", record.Thumbnail)
	assert.Equal(t, "1995", record.YearPublished)
	assert.Equal(t, "3", record.MinPlayers)
	assert.Equal(t, "4", record.MaxPlayers)
	assert.Equal(t, "120", record.PlayingTime)
	assert.InDelta(t, 2.2994, record.AverageWeight, 0.00001)
	assert.Equal(t, []string{"Klaus Teuber"}, record.Designers)
	assert.Equal(t, []string{"Volkan Baga", "Tanja Donner"}, record.Artists)
	assert.Nil(t, record.Description)
}

func TestNormalizeSingleAndListCardinality(t *testing.T) {
	single := parseThings(t, `<items><item id="1">
		<name type="primary" value="Solo"/>
		<link type="boardgamedesigner" value="Only Designer"/>
	</item></items>`)
	list := parseThings(t, `<items><item id="1">
		<name type="primary" value="Solo"/>
		<name type="alternate" value="Other"/>
		<link type="boardgamedesigner" value="Only Designer"/>
		<link type="boardgamemechanic" value="Dice Rolling"/>
	</item></items>`)

	a := Normalize(single[0])
	b := Normalize(list[0])

	assert.Equal(t, "Solo", a.Name)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, []string{"Only Designer"}, a.Designers)
	assert.Equal(t, a.Designers, b.Designers)
}

func TestNormalizeRoles(t *testing.T) {
	items := parseThings(t, `<items><item id="7">
		<name value="Roles"/>
		<link type="boardgamedesigner" value="D1"/>
		<link type="boardgameartist" value="A1"/>
		<link type="boardgamefamily" value="F1"/>
		<link type="boardgamedesigner" value="D2"/>
	</item></items>`)

	record := Normalize(items[0])

	assert.Equal(t, []string{"D1", "D2"}, record.Designers)
	assert.Equal(t, []string{"A1"}, record.Artists)
}

func TestNormalizeMissingFields(t *testing.T) {
	items := parseThings(t, `<items><item id="99"><name value="Bare"/></item></items>`)

	record := Normalize(items[0])

	assert.Equal(t, "99", record.ID)
	assert.Equal(t, "Bare", record.Name)
	assert.Empty(t, record.Image)
	assert.Empty(t, record.YearPublished)
	assert.Empty(t, record.PlayingTime)
	assert.Zero(t, record.AverageWeight)
	assert.Equal(t, []string{}, record.Designers)
	assert.Equal(t, []string{}, record.Artists)
}

func TestNormalizeUnparsableWeight(t *testing.T) {
	items := parseThings(t, `<items><item id="5"><name value="W"/>
		<statistics><ratings><averageweight value="n/a"/></ratings></statistics>
	</item></items>`)

	assert.Zero(t, Normalize(items[0]).AverageWeight)
}
