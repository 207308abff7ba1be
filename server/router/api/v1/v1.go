// Package v1 exposes the parser operations as JSON over HTTP.
package v1

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai/router"
)

// APIV1Service serves /api/v1.
type APIV1Service struct {
	Profile *profile.Profile
	Parser  router.EventParser
}

func NewAPIV1Service(profile *profile.Profile, parser router.EventParser) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Parser:  parser,
	}
}

// RegisterRoutes registers the v1 handlers on the given Echo instance.
//
//	POST /api/v1/events/parse
//	POST /api/v1/title
//	POST /api/v1/locations
//	POST /api/v1/information
//	POST /api/v1/text/enhance
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := echoServer.Group("/api/v1", mw...)
	g.Use(middleware.BodyLimit(bodyLimit(s.Profile)))

	g.POST("/events/parse", s.ParseEvent)
	g.POST("/title", s.ExtractTitle)
	g.POST("/locations", s.ExtractLocations)
	g.POST("/information", s.ExtractAllInformation)
	g.POST("/text/enhance", s.EnhanceText)
}

// bodyLimit leaves room for JSON escaping around the largest accepted input.
func bodyLimit(p *profile.Profile) string {
	if p == nil || p.Parser.MaxInputLength <= 0 {
		return "1M"
	}
	kb := (p.Parser.MaxInputLength*8)/1024 + 16
	return strconv.Itoa(kb) + "K"
}
