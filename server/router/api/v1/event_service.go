package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/eventsense/plugin/extract/location"
)

// TextRequest is the body of every v1 operation. ClipboardText is only read
// by the parse and enhance operations.
type TextRequest struct {
	Text          string `json:"text"`
	ClipboardText string `json:"clipboard_text,omitempty"`
}

// LocationsResponse wraps the ranked location list.
type LocationsResponse struct {
	Locations []location.Result `json:"locations"`
}

// ParseEvent runs the full pipeline. Extraction problems never fail the
// request; they are reported in the event's extraction_metadata.
// POST /api/v1/events/parse
func (s *APIV1Service) ParseEvent(c echo.Context) error {
	req, err := bindText(c)
	if err != nil {
		return err
	}
	ev := s.Parser.Parse(c.Request().Context(), req.Text, req.ClipboardText)
	return c.JSON(http.StatusOK, ev)
}

// ExtractTitle returns the best title.
// POST /api/v1/title
func (s *APIV1Service) ExtractTitle(c echo.Context) error {
	req, err := bindText(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Parser.ExtractTitle(req.Text))
}

// ExtractLocations returns the ranked locations.
// POST /api/v1/locations
func (s *APIV1Service) ExtractLocations(c echo.Context) error {
	req, err := bindText(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LocationsResponse{Locations: s.Parser.ExtractLocations(req.Text)})
}

// ExtractAllInformation returns title and location candidates.
// POST /api/v1/information
func (s *APIV1Service) ExtractAllInformation(c echo.Context) error {
	req, err := bindText(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Parser.ExtractAllInformation(req.Text))
}

// EnhanceText merges the clipboard fragment and rewrites the text.
// POST /api/v1/text/enhance
func (s *APIV1Service) EnhanceText(c echo.Context) error {
	req, err := bindText(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Parser.EnhanceTextForParsing(c.Request().Context(), req.Text, req.ClipboardText))
}

func bindText(c echo.Context) (*TextRequest, error) {
	req := &TextRequest{}
	if err := c.Bind(req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return req, nil
}
