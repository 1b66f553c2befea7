package services

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/wappstudy/wappstudy-backend/internal/clients/gcp"
	"github.com/wappstudy/wappstudy-backend/internal/clients/sendgrid"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// NotifierService sends the completion email with the certificate attached.
// A user without an email address is a no-op, not an error.
type NotifierService interface {
	SendCompletionEmail(ctx context.Context, user *types.User, course *types.Course, certificateKey string) error
}

type notifierService struct {
	log    *logger.Logger
	email  sendgrid.Client
	bucket gcp.BucketService
}

func NewNotifierService(baseLog *logger.Logger, email sendgrid.Client, bucket gcp.BucketService) NotifierService {
	svcLog := baseLog.With("service", "NotifierService")
	return &notifierService{log: svcLog, email: email, bucket: bucket}
}

func (s *notifierService) SendCompletionEmail(ctx context.Context, user *types.User, course *types.Course, certificateKey string) error {
	if user.Email == "" {
		s.log.Debug("user has no email, skipping completion email", "user_id", user.ID)
		return nil
	}

	reader, err := s.bucket.DownloadFile(ctx, certificateKey)
	if err != nil {
		return fmt.Errorf("download certificate %s: %w", certificateKey, err)
	}
	defer reader.Close()
	certificate, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read certificate %s: %w", certificateKey, err)
	}

	name := user.FullName
	if name == "" {
		name = user.WhatsappName
	}

	subject := fmt.Sprintf("Your certificate for %s", course.Name)
	body := fmt.Sprintf(
		"Dear %s,\n\nCongratulations on completing the course %s!\n\nAttached is your certificate of completion.\n\nKeep learning!\nWAppStudy Team",
		name, course.Name,
	)

	result, err := s.email.Send(ctx, sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: user.Email, Name: name}},
		Subject: subject,
		Text:    body,
		Attachments: []sendgrid.Attachment{
			{
				Filename: fmt.Sprintf("certificate_%s%s", course.ID, path.Ext(certificateKey)),
				MIMEType: "image/png",
				Content:  certificate,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send completion email: %w", err)
	}
	s.log.Info("sent completion email", "user_id", user.ID, "course_id", course.ID, "message_id", result.MessageID)
	return nil
}
