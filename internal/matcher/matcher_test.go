package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/dom"
	"formflow/backend/internal/models"
)

func profile(keys ...string) models.Profile {
	p := models.Profile{}
	for _, k := range keys {
		p[k] = models.ProfileValue{String: "x"}
	}
	return p
}

func TestMatchExactName(t *testing.T) {
	res := Match(profile("firstName", "lastName"), Mappings{}, "example.com",
		Field{Name: "firstName"}, 0)
	assert.Equal(t, "firstName", res.Key)
	assert.Equal(t, ExactScore, res.Score)
}

func TestMatchSubstring(t *testing.T) {
	// "zip" is a stop word, but the substring rule still finds zipCode.
	res := Match(profile("zipCode"), Mappings{}, "example.com",
		Field{Name: "zip", Label: "ZIP Code"}, 0)
	assert.Equal(t, "zipCode", res.Key)
	assert.Equal(t, ExactScore, res.Score)
}

func TestMatchOverride(t *testing.T) {
	m := Mappings{"example.com": {"fname": "firstName"}}
	res := Match(profile("firstName", "other"), m, "example.com",
		Field{Name: "fname"}, 0)
	assert.Equal(t, "firstName", res.Key)
	assert.Equal(t, OverrideScore, res.Score)
}

func TestMatchSiteWinsOverGlobal(t *testing.T) {
	m := Mappings{
		GlobalContext: {"fname": "nickname"},
		"example.com": {"fname": "firstName"},
	}
	res := Match(profile("firstName", "nickname"), m, "example.com",
		Field{Name: "fname"}, 0)
	assert.Equal(t, "firstName", res.Key)

	res = Match(profile("firstName", "nickname"), m, "other.com",
		Field{Name: "fname"}, 0)
	assert.Equal(t, "nickname", res.Key)
}

func TestMatchOverrideRemovalRestoresHeuristic(t *testing.T) {
	m := Mappings{GlobalContext: {"email": "workEmail"}}
	field := Field{Name: "email"}

	res := Match(profile("email", "firstName"), m, "example.com", field, 0)
	assert.Equal(t, "workEmail", res.Key)
	assert.Equal(t, OverrideScore, res.Score)

	m.Delete(GlobalContext, "email")
	res = Match(profile("email", "firstName"), m, "example.com", field, 0)
	assert.Equal(t, "email", res.Key)
	assert.Equal(t, ExactScore, res.Score)
}

func TestMatchIgnoreSentinel(t *testing.T) {
	m := Mappings{GlobalContext: {"captcha": IgnoreSentinel}}
	res := Match(profile("captcha"), m, "example.com", Field{Name: "captcha"}, 0)
	assert.True(t, res.Ignored)
	assert.Empty(t, res.Key)
}

func TestMatchBelowThresholdReportsScoreOnly(t *testing.T) {
	res := Match(profile("favoriteColor"), Mappings{}, "example.com",
		Field{Name: "quantity"}, 0)
	assert.Empty(t, res.Key, "weak match must not produce a key")
	assert.Less(t, res.Score, DefaultThreshold)
}

func TestMatchUncertainBandRetainsGuess(t *testing.T) {
	// "quanti" against "quality" scores between the unmatched bound
	// and the threshold: no key to fill with, but the best candidate
	// stays available as the guess.
	res := Match(profile("quality"), Mappings{}, "example.com",
		Field{Name: "quanti"}, 0)
	assert.Empty(t, res.Key)
	assert.Equal(t, "quality", res.Guess)
	assert.Greater(t, res.Score, UnmatchedScore)
	assert.LessOrEqual(t, res.Score, DefaultThreshold)
}

func TestMatchEmptyProfile(t *testing.T) {
	res := Match(models.Profile{}, Mappings{}, "example.com", Field{Name: "firstName"}, 0)
	assert.Empty(t, res.Key)
	assert.Zero(t, res.Score)
}

func TestIdentifierFallback(t *testing.T) {
	assert.Equal(t, "n", Field{Name: "n", ID: "i", Label: "l"}.Identifier())
	assert.Equal(t, "i", Field{ID: "i", Label: "l"}.Identifier())
	assert.Equal(t, "l", Field{Label: "l"}.Identifier())
}

func TestTokenizeDropsStopWords(t *testing.T) {
	assert.Equal(t, []string{"billing"}, Tokenize("Billing Address"))
	assert.Empty(t, Tokenize("First Name"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("email", "EMAIL"))
	assert.Equal(t, 0.0, Similarity("", "email"))
	assert.InDelta(t, 0.5, Similarity("ab", "ax"), 1e-9)
}

func TestLabelText(t *testing.T) {
	page, err := dom.NewMemPage(`<html><body><form>
		<label for="em">Email Address</label>
		<input id="em">
		<label>Phone<input name="ph"></label>
		<div><label>City</label><input name="city"></div>
	</form></body></html>`, "example.com")
	require.NoError(t, err)

	assert.Equal(t, "Email Address", LabelText(page, page.Query("#em")))
	assert.Equal(t, "Phone", LabelText(page, page.Query(`input[name="ph"]`)))
	assert.Equal(t, "City", LabelText(page, page.Query(`input[name="city"]`)))
	assert.Empty(t, LabelText(page, page.Query("form")))
}

func TestMappingsRescoping(t *testing.T) {
	m := Mappings{}
	m.Set("example.com", "fname", "firstName", true)
	assert.Equal(t, "firstName", m[GlobalContext]["fname"])

	// Saving site-scoped evicts the global entry for the identifier.
	m.Set("example.com", "fname", "nickname", false)
	assert.Equal(t, "nickname", m["example.com"]["fname"])
	_, ok := m[GlobalContext]
	assert.False(t, ok)

	// And back again.
	m.Set("example.com", "fname", "firstName", true)
	_, ok = m["example.com"]
	assert.False(t, ok)
}

func TestMappingsSetEmptyDeletes(t *testing.T) {
	m := Mappings{"example.com": {"fname": "firstName"}}
	m.Set("example.com", "fname", "", false)
	_, ok := m.Lookup("example.com", "fname")
	assert.False(t, ok)
}

func TestMappingsLookupCaseInsensitive(t *testing.T) {
	m := Mappings{"example.com": {"FName": "firstName"}}
	v, ok := m.Lookup("example.com", "fname")
	assert.True(t, ok)
	assert.Equal(t, "firstName", v)
}
