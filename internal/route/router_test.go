package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailtask/internal/model"
)

func TestRouteFirstMatchWins(t *testing.T) {
	r := New(model.ProjectMapping{
		{Keyword: "invoice", ProjectID: "7"},
		{Keyword: "inv", ProjectID: "9"},
	}, nil)

	projectID, keyword, ok := r.Route("Re: INVOICE #123")
	assert.True(t, ok)
	assert.Equal(t, "7", projectID)
	assert.Equal(t, "invoice", keyword)

	projectID, keyword, ok = r.Route("inventory count")
	assert.True(t, ok)
	assert.Equal(t, "9", projectID)
	assert.Equal(t, "inv", keyword)
}

func TestRouteIsCaseInsensitive(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "INVOICE", ProjectID: "7"}}, nil)

	for _, subject := range []string{
		"invoice", "Invoice #1", "re: fwd: InVoIcE", "see INVOICE",
	} {
		projectID, _, ok := r.Route(subject)
		assert.True(t, ok, subject)
		assert.Equal(t, "7", projectID, subject)
	}
}

func TestRouteMiss(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "INVOICE", ProjectID: "7"}}, nil)

	projectID, keyword, ok := r.Route("Lunch on Friday?")
	assert.False(t, ok)
	assert.Empty(t, projectID)
	assert.Empty(t, keyword)
}

func TestRouteEmptyMapping(t *testing.T) {
	r := New(nil, nil)

	assert.Equal(t, 0, r.Len())
	_, _, ok := r.Route("anything")
	assert.False(t, ok)
}

func TestKeywordsArePatterns(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "urgent|asap", ProjectID: "3"}}, nil)

	projectID, _, ok := r.Route("Need this ASAP")
	assert.True(t, ok)
	assert.Equal(t, "3", projectID)
	assert.Equal(t, "Need this", r.Title("Need this ASAP", "urgent|asap"))
}

func TestInvalidPatternFallsBackToLiteral(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "C++ (", ProjectID: "4"}}, nil)

	projectID, _, ok := r.Route("question about c++ ( templates")
	assert.True(t, ok)
	assert.Equal(t, "4", projectID)

	_, _, ok = r.Route("question about c templates")
	assert.False(t, ok)
}

func TestEmptyKeywordIsIgnored(t *testing.T) {
	r := New(model.ProjectMapping{
		{Keyword: "", ProjectID: "1"},
		{Keyword: "bug", ProjectID: "2"},
	}, nil)

	assert.Equal(t, 1, r.Len())
	_, _, ok := r.Route("hello")
	assert.False(t, ok)
}

func TestTitleStripsFirstOccurrence(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "INVOICE", ProjectID: "7"}}, nil)

	tests := []struct {
		subject string
		want    string
	}{
		{"Re: Invoice #123", "Re: #123"},
		{"invoice: March", ": March"},
		{"March invoice", "March"},
		{"Invoice invoice", "invoice"},
		{"FooINVOICEbar", "Foobar"},
		{"Re:Invoice#123", "Re:#123"},
		{"Re:Invoice #123", "Re: #123"},
		{"INVOICE", "INVOICE"},
		{"  Invoice  ", "Invoice"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Title(tt.subject, "INVOICE"), tt.subject)
	}
}

func TestTitleUnknownKeyword(t *testing.T) {
	r := New(model.ProjectMapping{{Keyword: "INVOICE", ProjectID: "7"}}, nil)

	assert.Equal(t, "Hello there", r.Title("  Hello there ", "missing"))
}
