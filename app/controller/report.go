package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/app/dto"
	"github.com/pinceletas/user-auth-service/app/service"
)

type ReportController struct {
	reportService *service.ReportService
}

func NewReportController(reportService *service.ReportService) *ReportController {
	return &ReportController{reportService: reportService}
}

// UserActiveInactiveStats serves the admin dashboard account-state breakdown.
func (c *ReportController) UserActiveInactiveStats(ctx echo.Context) error {
	stats, err := c.reportService.UserActiveInactiveStats(ctx.Request().Context())
	if err != nil {
		logrus.WithError(err).Error("User stats report failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, stats)
}
