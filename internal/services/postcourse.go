package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/clients/whatsapp"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

const maxOfferedCourses = 5

// PostCourseService runs the course-selection flow after a course completes
// (or when a user has nothing active): offer up to five courses the user is
// not enrolled in, read their pick, enroll them.
type PostCourseService interface {
	InFlow(user *types.User) bool
	Start(ctx context.Context, tx *gorm.DB, user *types.User) error
	HandleReply(ctx context.Context, tx *gorm.DB, user *types.User, text string) (*types.Enrollment, error)
}

type postCourseService struct {
	db          *gorm.DB
	log         *logger.Logger
	ai          openai.Client
	wa          whatsapp.Client
	courseRepo  repos.CourseRepo
	userRepo    repos.UserRepo
	enrollments EnrollmentService
}

func NewPostCourseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	wa whatsapp.Client,
	courseRepo repos.CourseRepo,
	userRepo repos.UserRepo,
	enrollments EnrollmentService,
) PostCourseService {
	svcLog := baseLog.With("service", "PostCourseService")
	return &postCourseService{
		db:          db,
		log:         svcLog,
		ai:          ai,
		wa:          wa,
		courseRepo:  courseRepo,
		userRepo:    userRepo,
		enrollments: enrollments,
	}
}

func (s *postCourseService) InFlow(user *types.User) bool {
	return user.PostCourseStatus == types.PostCourseStatusInProgress
}

// Start offers the selection list and marks the flow in progress. When every
// active course is already enrolled, the flow ends immediately.
func (s *postCourseService) Start(ctx context.Context, tx *gorm.DB, user *types.User) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var offered []*types.Course
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		enrolledIDs, err := s.enrollments.EnrolledCourseIDs(ctx, innerTx, user.ID)
		if err != nil {
			return err
		}
		courses, err := s.courseRepo.ListActiveExcluding(ctx, innerTx, enrolledIDs)
		if err != nil {
			return err
		}
		if len(courses) > maxOfferedCourses {
			courses = courses[:maxOfferedCourses]
		}

		if len(courses) == 0 {
			offered = nil
			return s.userRepo.UpdateFields(ctx, innerTx, user.ID, map[string]interface{}{
				"post_course_status": types.PostCourseStatusCompleted,
				"post_course_step":   0,
				"shared_course_ids":  nil,
			})
		}

		ids := make([]uuid.UUID, 0, len(courses))
		for _, c := range courses {
			ids = append(ids, c.ID)
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := s.userRepo.UpdateFields(ctx, innerTx, user.ID, map[string]interface{}{
			"post_course_status": types.PostCourseStatusInProgress,
			"post_course_step":   1,
			"shared_course_ids":  raw,
		}); err != nil {
			return err
		}
		offered = courses
		return nil
	})
	if err != nil {
		return err
	}

	if len(offered) == 0 {
		_, err := s.wa.SendText(ctx, user.WhatsappID,
			"You've completed all available courses. Stay tuned for new courses soon!")
		return err
	}

	rows := make([]whatsapp.ListRow, 0, len(offered))
	for i, c := range offered {
		rows = append(rows, whatsapp.ListRow{
			ID:          strconv.Itoa(i + 1),
			Title:       c.Name,
			Description: c.Category,
		})
	}
	_, err = s.wa.SendInteractiveList(ctx, user.WhatsappID, whatsapp.ListRequest{
		Header:     "Next course",
		Body:       "Here are some other courses you might like. Pick one to keep learning!",
		ButtonText: "View courses",
		Rows:       rows,
	})
	if err == nil {
		return nil
	}
	s.log.Warn("course list message failed, falling back to text", "user_id", user.ID, "error", err)

	var b strings.Builder
	b.WriteString("Here are some other courses you might like:\n\n")
	for i, c := range offered {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Name)
	}
	b.WriteString("\nPlease reply with the number of your chosen course.")
	if _, err := s.wa.SendText(ctx, user.WhatsappID, b.String()); err != nil {
		return err
	}
	return nil
}

// HandleReply resolves the user's pick against the offered list. A plain
// number is taken as-is; anything else goes through the AI extractor. An
// invalid pick re-prompts and keeps the flow open.
func (s *postCourseService) HandleReply(ctx context.Context, tx *gorm.DB, user *types.User, text string) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var offeredIDs []uuid.UUID
	if len(user.SharedCourseIDs) > 0 {
		if err := json.Unmarshal(user.SharedCourseIDs, &offeredIDs); err != nil {
			return nil, fmt.Errorf("decode shared course ids: %w", err)
		}
	}
	if len(offeredIDs) == 0 {
		if err := s.Start(ctx, transaction, user); err != nil {
			return nil, err
		}
		return nil, nil
	}

	index, ok := s.extractSelection(ctx, text, len(offeredIDs))
	if !ok {
		_, err := s.wa.SendText(ctx, user.WhatsappID,
			"Invalid selection. Please reply with the number of your chosen course.")
		return nil, err
	}

	courseID := offeredIDs[index-1]
	var enrollment *types.Enrollment
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		var err error
		enrollment, err = s.enrollments.Enroll(ctx, innerTx, user, courseID)
		if err != nil {
			return err
		}
		return s.userRepo.UpdateFields(ctx, innerTx, user.ID, map[string]interface{}{
			"post_course_status": types.PostCourseStatusCompleted,
			"post_course_step":   0,
			"shared_course_ids":  nil,
		})
	})
	if err != nil {
		return nil, err
	}

	course, err := s.courseRepo.GetByID(ctx, transaction, courseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wa.SendText(ctx, user.WhatsappID,
		fmt.Sprintf("You've been enrolled in *%s*. You're all set for your next learning journey!", course.Name)); err != nil {
		return nil, err
	}
	s.log.Info("post-course enrollment", "user_id", user.ID, "course_id", courseID)
	return enrollment, nil
}

// extractSelection returns the 1-based pick, numeric fast path first, AI
// extraction second. AI failure means no valid pick.
func (s *postCourseService) extractSelection(ctx context.Context, text string, count int) (int, bool) {
	trimmed := strings.TrimSpace(text)
	if idx, err := strconv.Atoi(trimmed); err == nil {
		return idx, idx >= 1 && idx <= count
	}

	system := "You extract a course selection from a learner's reply. " +
		"The learner was shown a numbered list of courses and asked to pick one. " +
		"Return the 1-based index of their pick, or 0 when no pick can be determined."
	user := fmt.Sprintf("The list has %d courses. Learner reply: %s", count, trimmed)
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"index": map[string]any{"type": "integer"},
		},
		"required":             []string{"index"},
		"additionalProperties": false,
	}

	out, err := s.ai.GenerateJSON(ctx, system, user, "course_selection", schema)
	if err != nil {
		s.log.Warn("course selection extraction failed", "error", err)
		return 0, false
	}
	raw, _ := out["index"].(float64)
	idx := int(raw)
	return idx, idx >= 1 && idx <= count
}
