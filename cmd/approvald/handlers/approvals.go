package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
)

// Detail is the JSON shape of one approval request.
type Detail struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Subject   string            `json:"subject"`
	Summary   map[string]string `json:"summary"`
	Decision  string            `json:"decision"`
	OpenedAt  time.Time         `json:"openedAt"`
	DecidedAt *time.Time        `json:"decidedAt,omitempty"`
}

func composeDetail(req approval.Request) Detail {
	return Detail{
		ID:        req.ID,
		Kind:      req.Kind.String(),
		Subject:   req.Subject,
		Summary:   req.Summary,
		Decision:  req.Decision.String(),
		OpenedAt:  req.OpenedAt,
		DecidedAt: req.DecidedAt,
	}
}

// ListPendingHandler responds with undecided requests, oldest first.
func ListPendingHandler(approvals approval.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		pending, err := approvals.ListPending(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		resp := make([]Detail, 0, len(pending))
		for _, req := range pending {
			resp = append(resp, composeDetail(req))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func GetApprovalHandler(approvals approval.Interface, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := approvals.Get(c.Request().Context(), c.Param(paramID))
		if err != nil {
			if errors.Is(err, approval.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no such approval request")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, composeDetail(req))
	}
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

// DecideHandler resolves a pending request to approved or rejected.
//
// 400 on any other decision value, 404 on unknown ids, 409 when the
// request is already decided.
func DecideHandler(approvals approval.Interface, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := decisionRequest{}
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can not read decision")
		}

		decision, err := domain.AsApprovalState(body.Decision)
		if err != nil ||
			(decision != domain.ApprovalApproved && decision != domain.ApprovalRejected) {
			return echo.NewHTTPError(
				http.StatusBadRequest, `"decision" should be "approved" or "rejected"`,
			)
		}

		ctx := c.Request().Context()
		id := c.Param(paramID)
		if err := approvals.Decide(ctx, id, decision); err != nil {
			if errors.Is(err, approval.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no such approval request")
			}
			if errors.Is(err, approval.ErrAlreadyDecided) {
				return echo.NewHTTPError(http.StatusConflict, "already decided")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		c.Logger().Infof("approval %s decided %s by %s", id, decision, Approver(c))

		req, err := approvals.Get(ctx, id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, composeDetail(req))
	}
}
