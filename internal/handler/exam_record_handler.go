package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uzcoder03/maktab/internal/models"
	"github.com/uzcoder03/maktab/internal/service"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/response"
)

// ExamRecordHandler exposes the offline exam score endpoints.
type ExamRecordHandler struct {
	records *service.ExamRecordService
}

// NewExamRecordHandler constructs ExamRecordHandler.
func NewExamRecordHandler(records *service.ExamRecordService) *ExamRecordHandler {
	return &ExamRecordHandler{records: records}
}

// Record godoc
// @Summary Record scores from a paper exam
// @Tags ExamRecords
// @Accept json
// @Produce json
// @Param payload body service.RecordExamScoresRequest true "Exam scores payload"
// @Success 200 {object} response.Envelope
// @Router /exam-records [post]
func (h *ExamRecordHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RecordExamScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam scores payload"))
		return
	}

	count, err := h.records.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"recorded": count}, nil)
}

// List godoc
// @Summary List offline exam scores
// @Tags ExamRecords
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /exam-records [get]
func (h *ExamRecordHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ExamRecordFilter{
		StudentID: c.Query("studentId"),
		SubjectID: c.Query("subjectId"),
	}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	records, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
