package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
	<form id="signup">
		<label for="email">Email</label>
		<input id="email" name="email" type="text" value="old@example.com">
		<input name="news" type="checkbox" checked>
		<select name="country" multiple>
			<option value="us" selected>United States</option>
			<option value="ca">Canada</option>
		</select>
	</form>
	<div data-formflow-ui="1"><button id="panel-btn">Fill</button></div>
</body></html>`

func TestMemPageQuery(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	el := page.Query("#email")
	require.NotNil(t, el)
	assert.Equal(t, "input", el.Tag())
	assert.Equal(t, "email", el.ID())
	assert.Equal(t, "old@example.com", el.Value())

	assert.Nil(t, page.Query("#missing"))
	assert.Nil(t, page.Query("#not[a[valid"), "invalid selector must not panic")

	assert.Len(t, page.Forms(), 1)
	assert.Equal(t, "example.com", page.Hostname())
}

func TestMemElementState(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	input := page.Query("#email")
	input.SetValue("new@example.com")
	assert.Equal(t, "new@example.com", input.Value())

	box := page.Query(`input[name="news"]`)
	assert.True(t, box.Checked())
	box.SetChecked(false)
	assert.False(t, box.Checked())

	sel := page.Query(`select[name="country"]`)
	assert.True(t, sel.Multiple())
	opts := sel.Options()
	require.Len(t, opts, 2)
	assert.True(t, opts[0].Selected())
	assert.False(t, opts[1].Selected())
}

func TestMemPageDispatchTrace(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	el := page.Query("#email")
	el.Dispatch(Event{Type: "input"})
	el.Focus()
	el.Blur()

	trace := page.Trace()
	require.Len(t, trace, 3)
	assert.Equal(t, "input", trace[0].Ev.Type)
	assert.Equal(t, "focus", trace[1].Ev.Type)
	assert.Equal(t, "blur", trace[2].Ev.Type)
	assert.Nil(t, page.Focused())

	page.ClearTrace()
	assert.Empty(t, page.Trace())
}

func TestMemPageHitTest(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	input := page.Query("#email")
	box := page.Query(`input[name="news"]`)
	page.SetRect(input, Rect{X: 0, Y: 0, W: 100, H: 20})
	page.SetRect(box, Rect{X: 0, Y: 0, W: 50, H: 10})

	// The later registration wins where rects overlap.
	assert.Equal(t, box, page.ElementFromPoint(10, 5))
	assert.Equal(t, input, page.ElementFromPoint(80, 15))
	assert.Nil(t, page.ElementFromPoint(500, 500))
}

func TestSubmitForm(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	form := page.Query("#signup")
	require.NoError(t, page.SubmitForm(form))
	assert.Len(t, page.Submitted(), 1)

	err = page.SubmitForm(page.Query("#email"))
	assert.Error(t, err)
}

func TestInsideUIMarker(t *testing.T) {
	page, err := NewMemPage(samplePage, "example.com")
	require.NoError(t, err)

	assert.True(t, InsideUIMarker(page.Query("#panel-btn")))
	assert.False(t, InsideUIMarker(page.Query("#email")))
}
