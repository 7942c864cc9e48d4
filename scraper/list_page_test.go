package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listPageURL = "https://www.olx.com.pk/lahore_g4060673/cars_c84"

func TestParseListHTMLDeduplicatesByHref(t *testing.T) {
	html := `<html><body>
		<li>
			<a href="/item/toyota-corolla-iid-101" title="Toyota Corolla"></a>
			<div aria-label="Price"><span>PKR 2,450,000</span></div>
			<div aria-label="Location"><span>DHA, Lahore</span></div>
		</li>
		<li>
			<a href="/item/toyota-corolla-iid-101" title="Duplicate Anchor"></a>
		</li>
		<li>
			<a href="https://www.olx.com.pk/item/honda-civic-iid-202" title="Honda Civic"></a>
		</li>
	</body></html>`

	listings, err := ParseListHTML(html, listPageURL, 0)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Toyota Corolla", listings[0].Title, "first-seen anchor wins")
	assert.Equal(t, "https://www.olx.com.pk/item/toyota-corolla-iid-101", listings[0].Link)
	assert.Equal(t, "PKR 2,450,000", listings[0].Price)
	assert.Equal(t, "DHA, Lahore", listings[0].Location)
	assert.Equal(t, "Honda Civic", listings[1].Title)
}

func TestParseListHTMLCapsAtMaxItems(t *testing.T) {
	html := `<html><body>
		<a href="/item/a-iid-1"></a>
		<a href="/item/b-iid-2"></a>
		<a href="/item/c-iid-3"></a>
		<a href="/item/d-iid-4"></a>
	</body></html>`

	listings, err := ParseListHTML(html, listPageURL, 2)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "https://www.olx.com.pk/item/a-iid-1", listings[0].Link)
	assert.Equal(t, "https://www.olx.com.pk/item/b-iid-2", listings[1].Link)
}

func TestParseListHTMLTitleFallsBackToCard(t *testing.T) {
	html := `<html><body>
		<li>
			<h2>Suzuki Alto 2020</h2>
			<a href="/item/alto-iid-303"></a>
		</li>
	</body></html>`

	listings, err := ParseListHTML(html, listPageURL, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Suzuki Alto 2020", listings[0].Title)
}

func TestParseListHTMLIgnoresNonListingAnchors(t *testing.T) {
	html := `<html><body>
		<a href="/profile/seller123">Seller</a>
		<a href="/lahore_g4060673/bikes_c81">Bikes</a>
	</body></html>`

	listings, err := ParseListHTML(html, listPageURL, 0)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestParseListHTMLMissingCardFieldsStayEmpty(t *testing.T) {
	html := `<html><body><a href="/item/bare-iid-9"></a></body></html>`

	listings, err := ParseListHTML(html, listPageURL, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Empty(t, listings[0].Title)
	assert.Empty(t, listings[0].Price)
	assert.Empty(t, listings[0].Location)
}
