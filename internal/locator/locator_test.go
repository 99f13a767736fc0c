package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/dom"
)

func mustPage(t *testing.T, src string) *dom.MemPage {
	t.Helper()
	page, err := dom.NewMemPage(src, "example.com")
	require.NoError(t, err)
	return page
}

func TestGenerateIDRoundTrip(t *testing.T) {
	page := mustPage(t, `<html><body><form>
		<input id="user:email" name="email">
	</form></body></html>`)

	el := page.Query(`input[name="email"]`)
	require.NotNil(t, el)

	loc := Generate(el)
	assert.Equal(t, KindID, loc.Kind)
	assert.Equal(t, `user\:email`, loc.Value)

	found := Resolve(page, loc)
	require.NotNil(t, found)
	assert.Equal(t, el, found)
}

func TestGeneratePathRoundTrip(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div><span>label</span><input name="a"></div>
		<div><input name="b1"><input name="b2"></div>
	</body></html>`)

	first := page.Query(`input[name="a"]`)
	loc := Generate(first)
	assert.Equal(t, KindPath, loc.Kind)
	assert.Equal(t, first, Resolve(page, loc))

	second := page.Query(`input[name="b2"]`)
	loc2 := Generate(second)
	assert.Contains(t, loc2.Value, "nth-of-type(2)")
	assert.Equal(t, second, Resolve(page, loc2))
}

func TestGeneratePathUsesClasses(t *testing.T) {
	page := mustPage(t, `<html><body>
		<span class="sidebar"></span>
		<div class="content"><input name="q"></div>
	</body></html>`)

	el := page.Query(`input[name="q"]`)
	loc := Generate(el)
	assert.Contains(t, loc.Value, "div.content")
	assert.Equal(t, el, Resolve(page, loc))
}

func TestChildIndexPath(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div></div>
		<div>
			<p>first</p>
			<input name="target">
		</div>
	</body></html>`)

	el := page.Query(`input[name="target"]`)
	path := ChildIndexPath(el)
	assert.Equal(t, []int{1, 1}, path)

	found := Resolve(page, Locator{Kind: KindIndexPath, Index: path})
	assert.Equal(t, el, found)

	body := page.Body()
	assert.Nil(t, ChildIndexPath(body))
}

func TestResolveFallback(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div><input name="field"></div>
	</body></html>`)

	el := page.Query(`input[name="field"]`)

	// Stale id locator; the index path still finds the element.
	stale := Locator{Kind: KindID, Value: "gone"}
	found := ResolveFallback(page, stale, []int{0, 0}, 0, 0, false)
	assert.Equal(t, el, found)

	// Index path also stale; the hit test is the last resort.
	page.SetRect(el, dom.Rect{X: 10, Y: 10, W: 100, H: 20})
	found = ResolveFallback(page, stale, []int{9, 9}, 50, 15, true)
	assert.Equal(t, el, found)

	// Everything stale and no point recorded: a miss, not a panic.
	assert.Nil(t, ResolveFallback(page, stale, []int{9, 9}, 0, 0, false))
}

func TestPoint(t *testing.T) {
	loc := Point(12, 34)
	assert.Equal(t, KindPoint, loc.Kind)
	assert.Equal(t, 12.0, loc.X)
	assert.Equal(t, 34.0, loc.Y)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `user\:email`, Escape("user:email"))
	assert.Equal(t, "plain-id_9", Escape("plain-id_9"))
	assert.Equal(t, `a\.b\ c`, Escape("a.b c"))
}
