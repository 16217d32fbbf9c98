package handler

import (
	"net/http" // HTTP status codes
	"strconv"  // parsing the status query parameter

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/hyeonwoo/railbot/internal/model"
	"github.com/hyeonwoo/railbot/internal/notifier"
	"github.com/hyeonwoo/railbot/internal/worker"
)

// CompletionHandler accepts outcome callbacks from the reservation worker.
// The endpoint is loopback-only in practice but still sits behind the
// internal auth middleware so a stray request cannot unlock a session.
type CompletionHandler struct {
	Notifier *notifier.Notifier
}

// NewCompletionHandler constructs a CompletionHandler.  The notifier must
// be non-nil.
func NewCompletionHandler(n *notifier.Notifier) *CompletionHandler {
	if n == nil {
		panic("nil notifier passed to NewCompletionHandler")
	}
	return &CompletionHandler{Notifier: n}
}

// Complete handles POST /internal/completion/:id.  The status query
// parameter carries 1 (reserved), 0 (gave up) or -1 (fatal error) and
// detail carries the human readable reason.  Delivery is idempotent, so a
// retried callback after a half-failed first attempt is safe.
func (h *CompletionHandler) Complete(c echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session id"})
	}

	status, err := strconv.Atoi(c.QueryParam("status"))
	if err != nil || status < -1 || status > 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	detail := c.QueryParam("detail")
	outcome := model.Outcome{
		Status:    model.OutcomeStatus(status),
		Detail:    detail,
		Cancelled: status == int(model.OutcomeFailure) && detail == worker.DetailCancelled,
	}

	h.Notifier.Deliver(c.Request().Context(), sessionID, outcome)
	return c.JSON(http.StatusOK, echo.Map{"status": "delivered"})
}
