package podengine

import (
	"encoding/xml"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// writeXML sends v as an XML document preceded by the standard header.
func writeXML(c echo.Context, contentType string, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// apiError writes the {"error": msg} body used by every JSON endpoint.
func apiError(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Error: msg})
}

func apiErrorDetails(c echo.Context, code int, msg string, details any) error {
	return c.JSON(code, errorResponse{Error: msg, Details: details})
}

// internalError logs err and answers 500 with msg. The driver error is only
// exposed to the client outside production.
func (a *App) internalError(c echo.Context, msg string, err error) error {
	a.Logger.Error().Err(err).Str("path", c.Path()).Msg(msg)
	if a.Config.IsProduction() {
		return apiError(c, http.StatusInternalServerError, msg)
	}
	return apiErrorDetails(c, http.StatusInternalServerError, msg, err.Error())
}
