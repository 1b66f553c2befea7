package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/http/response"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
	"github.com/wappstudy/wappstudy-backend/internal/services"
)

// ContentHandler is the authoring API: course, module, topic and paragraph
// mutations plus assessment activation.
type ContentHandler struct {
	log     *logger.Logger
	content services.ContentService
	catalog services.CatalogService
}

func NewContentHandler(log *logger.Logger, content services.ContentService, catalog services.CatalogService) *ContentHandler {
	return &ContentHandler{
		log:     log.With("handler", "ContentHandler"),
		content: content,
		catalog: catalog,
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

type createCourseRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Level           string   `json:"level"`
	DurationInWeeks int      `json:"duration_in_weeks"`
	Tags            []string `json:"tags"`
	Descriptions    []struct {
		Text   string                   `json:"text" binding:"required"`
		Images []types.DescriptionImage `json:"images"`
	} `json:"descriptions"`
}

func (h *ContentHandler) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	tags, _ := json.Marshal(req.Tags)
	course := &types.Course{
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Level:           req.Level,
		DurationInWeeks: req.DurationInWeeks,
		Tags:            datatypes.JSON(tags),
	}
	descriptions := make([]*types.CourseDescription, 0, len(req.Descriptions))
	for i, d := range req.Descriptions {
		images, _ := json.Marshal(d.Images)
		descriptions = append(descriptions, &types.CourseDescription{
			Text:     d.Text,
			Images:   datatypes.JSON(images),
			Position: i + 1,
		})
	}

	created, err := h.content.CreateCourse(c.Request.Context(), nil, course, descriptions)
	if err != nil {
		h.log.Error("CreateCourse failed", "error", err)
		response.RespondError(c, response.StatusFor(err), "create_course_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"course": created})
}

func (h *ContentHandler) ActivateCourse(c *gin.Context) {
	courseID, ok := pathUUID(c, "courseID")
	if !ok {
		return
	}
	if err := h.content.ActivateCourse(c.Request.Context(), nil, courseID); err != nil {
		h.log.Error("ActivateCourse failed", "course_id", courseID, "error", err)
		response.RespondError(c, response.StatusFor(err), "activate_course_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"activated": true})
}

type createModuleRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *ContentHandler) CreateModule(c *gin.Context) {
	courseID, ok := pathUUID(c, "courseID")
	if !ok {
		return
	}
	var req createModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	module, err := h.content.CreateModule(c.Request.Context(), nil, &types.Module{
		CourseID: courseID,
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		h.log.Error("CreateModule failed", "course_id", courseID, "error", err)
		response.RespondError(c, response.StatusFor(err), "create_module_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"module": module})
}

func (h *ContentHandler) DeleteModule(c *gin.Context) {
	moduleID, ok := pathUUID(c, "moduleID")
	if !ok {
		return
	}
	if err := h.content.DeleteModule(c.Request.Context(), nil, moduleID); err != nil {
		h.log.Error("DeleteModule failed", "module_id", moduleID, "error", err)
		response.RespondError(c, response.StatusFor(err), "delete_module_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type createTopicRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	IsActive *bool  `json:"is_active"`
}

func (h *ContentHandler) CreateTopic(c *gin.Context) {
	moduleID, ok := pathUUID(c, "moduleID")
	if !ok {
		return
	}
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	topic, err := h.content.CreateTopic(c.Request.Context(), nil, &types.Topic{
		ModuleID: moduleID,
		Title:    req.Title,
		Content:  req.Content,
		IsActive: active,
	})
	if err != nil {
		h.log.Error("CreateTopic failed", "module_id", moduleID, "error", err)
		response.RespondError(c, response.StatusFor(err), "create_topic_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"topic": topic})
}

type updateTopicRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsActive *bool   `json:"is_active"`
}

func (h *ContentHandler) UpdateTopic(c *gin.Context) {
	topicID, ok := pathUUID(c, "topicID")
	if !ok {
		return
	}
	var req updateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", nil)
		return
	}
	if err := h.content.UpdateTopic(c.Request.Context(), nil, topicID, fields); err != nil {
		h.log.Error("UpdateTopic failed", "topic_id", topicID, "error", err)
		response.RespondError(c, response.StatusFor(err), "update_topic_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"updated": true})
}

type reorderTopicRequest struct {
	ModuleID uuid.UUID `json:"module_id" binding:"required"`
	NewOrder int       `json:"new_order" binding:"required"`
}

func (h *ContentHandler) ReorderTopic(c *gin.Context) {
	topicID, ok := pathUUID(c, "topicID")
	if !ok {
		return
	}
	var req reorderTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.content.ReorderTopic(c.Request.Context(), nil, req.ModuleID, topicID, req.NewOrder); err != nil {
		h.log.Error("ReorderTopic failed", "topic_id", topicID, "error", err)
		response.RespondError(c, response.StatusFor(err), "reorder_topic_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"reordered": true})
}

func (h *ContentHandler) DeleteTopic(c *gin.Context) {
	topicID, ok := pathUUID(c, "topicID")
	if !ok {
		return
	}
	if err := h.content.DeleteTopic(c.Request.Context(), nil, topicID); err != nil {
		h.log.Error("DeleteTopic failed", "topic_id", topicID, "error", err)
		response.RespondError(c, response.StatusFor(err), "delete_topic_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type createParagraphsRequest struct {
	Contents []string `json:"contents" binding:"required"`
}

func (h *ContentHandler) CreateParagraphs(c *gin.Context) {
	topicID, ok := pathUUID(c, "topicID")
	if !ok {
		return
	}
	var req createParagraphsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	paragraphs, err := h.content.CreateParagraphs(c.Request.Context(), nil, topicID, req.Contents)
	if err != nil {
		h.log.Error("CreateParagraphs failed", "topic_id", topicID, "error", err)
		response.RespondError(c, response.StatusFor(err), "create_paragraphs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"paragraphs": paragraphs})
}

type createAssessmentRequest struct {
	Title     string `json:"title" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Questions []struct {
		Type    string  `json:"type" binding:"required"`
		Text    string  `json:"text" binding:"required"`
		Marks   float64 `json:"marks"`
		Options []struct {
			Text      string `json:"text"`
			IsCorrect bool   `json:"is_correct"`
		} `json:"options"`
		CorrectAnswer string `json:"correct_answer"`
	} `json:"questions"`
}

func (h *ContentHandler) CreateAssessment(c *gin.Context) {
	moduleID, ok := pathUUID(c, "moduleID")
	if !ok {
		return
	}
	var req createAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	questions := make([]*types.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		marks := q.Marks
		if marks == 0 {
			marks = 1
		}
		options := make([]types.QuestionOption, 0, len(q.Options))
		correct := q.CorrectAnswer
		for _, o := range q.Options {
			options = append(options, types.QuestionOption{Text: o.Text, IsCorrect: o.IsCorrect})
			if o.IsCorrect && correct == "" {
				correct = o.Text
			}
		}
		raw, _ := json.Marshal(options)
		questions = append(questions, &types.Question{
			Type:          q.Type,
			Text:          q.Text,
			Marks:         marks,
			Options:       datatypes.JSON(raw),
			CorrectAnswer: correct,
		})
	}

	assessment, err := h.content.CreateAssessment(c.Request.Context(), nil, &types.Assessment{
		ModuleID: moduleID,
		Title:    req.Title,
		Type:     req.Type,
	}, questions)
	if err != nil {
		h.log.Error("CreateAssessment failed", "module_id", moduleID, "error", err)
		response.RespondError(c, response.StatusFor(err), "create_assessment_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": assessment})
}

type setAssessmentActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *ContentHandler) SetAssessmentActive(c *gin.Context) {
	assessmentID, ok := pathUUID(c, "assessmentID")
	if !ok {
		return
	}
	var req setAssessmentActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.content.SetAssessmentActive(c.Request.Context(), nil, assessmentID, *req.Active); err != nil {
		h.log.Error("SetAssessmentActive failed", "assessment_id", assessmentID, "error", err)
		response.RespondError(c, response.StatusFor(err), "set_assessment_active_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"active": *req.Active})
}

func (h *ContentHandler) ListModules(c *gin.Context) {
	courseID, ok := pathUUID(c, "courseID")
	if !ok {
		return
	}
	modules, err := h.catalog.ListModules(c.Request.Context(), nil, courseID)
	if err != nil {
		h.log.Error("ListModules failed", "course_id", courseID, "error", err)
		response.RespondError(c, response.StatusFor(err), "list_modules_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"modules": modules})
}
