package handlers

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-lending/internal/middleware"
	"github.com/sjperalta/fintera-lending/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func archiveContentType(name string) string {
	switch path.Ext(name) {
	case ".xlsx":
		return contentTypeXLSX
	case ".pdf":
		return contentTypePDF
	}
	return "application/octet-stream"
}

// @Summary Download Archived Report
// @Description Stream a previously generated report of the caller's tenant
// @Tags Reports
// @Produce octet-stream
// @Param path query string true "Archive path returned when the report was generated"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /reports/archive [get]
func (h *ReportHandler) Download(c *gin.Context) {
	archived, err := h.reportService.OpenArchived(middleware.GetTenantID(c), c.Query("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer archived.File.Close()

	c.DataFromReader(http.StatusOK, archived.Size, archiveContentType(archived.Name), archived.File, map[string]string{
		"Content-Disposition": `attachment; filename="` + archived.Name + `"`,
	})
}

// @Summary Delete Archived Report
// @Tags Reports
// @Param path query string true "Archive path"
// @Success 204
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /reports/archive [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.reportService.DeleteArchived(middleware.GetTenantID(c), c.Query("path")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
