package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai/router"
	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/title"
)

func newTestServer(t *testing.T, parser router.EventParser) *echo.Echo {
	t.Helper()
	prof, err := profile.Load(nil, "")
	require.NoError(t, err)
	e := echo.New()
	NewAPIV1Service(prof, parser).RegisterRoutes(e)
	return e
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestParseEvent(t *testing.T) {
	start := time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)
	ev := event.New()
	ev.Title = "Dinner"
	ev.Start = &start
	ev.Location = "Starbucks"
	ev.Confidence = 0.8
	ev.ParsingPath = event.PathRegexPrimary

	parser := router.NewMockEventParser()
	parser.Events["Dinner at 7pm @ Starbucks"] = ev
	e := newTestServer(t, parser)

	rec := post(e, "/api/v1/events/parse", `{"text":"Dinner at 7pm @ Starbucks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Dinner", got["title"])
	assert.Equal(t, "Starbucks", got["location"])
	assert.Equal(t, "2025-01-15T19:00:00Z", got["start_datetime"])
	assert.Equal(t, "regex_primary", got["parsing_path"])
	assert.Equal(t, 0.8, got["confidence_score"])
	assert.Equal(t, []string{"parse:Dinner at 7pm @ Starbucks"}, parser.Calls())
}

func TestParseEvent_EmptyTextIsNotAnError(t *testing.T) {
	e := newTestServer(t, router.NewMockEventParser())

	rec := post(e, "/api/v1/events/parse", `{"text":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 0.0, got["confidence_score"])
	assert.Equal(t, true, got["needs_confirmation"])
}

func TestBadRequest(t *testing.T) {
	e := newTestServer(t, router.NewMockEventParser())
	for _, path := range []string{"/api/v1/events/parse", "/api/v1/title", "/api/v1/locations", "/api/v1/information", "/api/v1/text/enhance"} {
		t.Run(path, func(t *testing.T) {
			rec := post(e, path, `{"text":`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExtractTitle(t *testing.T) {
	parser := router.NewMockEventParser()
	parser.Titles["Dinner at 7pm"] = title.Result{Title: "Dinner", Confidence: 0.7, Method: title.MethodEventType}
	e := newTestServer(t, parser)

	rec := post(e, "/api/v1/title", `{"text":"Dinner at 7pm"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got title.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Dinner", got.Title)
	assert.Equal(t, title.MethodEventType, got.Method)
}

func TestExtractLocations(t *testing.T) {
	parser := router.NewMockEventParser()
	parser.Locations["@ Starbucks"] = []location.Result{{
		Match: extract.Match{Value: "Starbucks", Confidence: 0.95, Start: 2, End: 11},
		Type:  location.TypeVenue,
	}}
	e := newTestServer(t, parser)

	rec := post(e, "/api/v1/locations", `{"text":"@ Starbucks"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got LocationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Locations, 1)
	assert.Equal(t, "Starbucks", got.Locations[0].Value)
	assert.Equal(t, location.TypeVenue, got.Locations[0].Type)

	rec = post(e, "/api/v1/locations", `{"text":"nothing here"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locations":[]}`, rec.Body.String())
}

func TestExtractAllInformation(t *testing.T) {
	parser := router.NewMockEventParser()
	parser.Locations["@ Starbucks"] = []location.Result{{Match: extract.Match{Value: "Starbucks", Confidence: 0.95}}}
	e := newTestServer(t, parser)

	rec := post(e, "/api/v1/information", `{"text":"@ Starbucks"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got event.Information
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.BestLocation)
	assert.Equal(t, "Starbucks", got.BestLocation.Value)
	assert.Equal(t, 0.95, got.LocationConfidence)
}

func TestEnhanceText(t *testing.T) {
	e := newTestServer(t, router.NewMockEventParser())

	rec := post(e, "/api/v1/text/enhance", `{"text":"Team standup","clipboard_text":"tomorrow at 10am"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Team standup\ntomorrow at 10am", got["final_text"])
	assert.Equal(t, true, got["merge_applied"])
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name string
		p    *profile.Profile
		want string
	}{
		{"nil profile", nil, "1M"},
		{"default input length", &profile.Profile{Parser: profile.ParserConfig{MaxInputLength: 10000}}, "94K"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bodyLimit(tt.p))
		})
	}
}
