package services

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/gcp"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/envutil"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

const (
	certWidth  = 1600
	certHeight = 1130
	badgeSize  = 500
)

// CertificateArtifacts are the rendered completion artifacts, addressable by
// public URL once uploaded.
type CertificateArtifacts struct {
	CertificateURL string
	CertificateKey string
	BadgeURL       string
	BadgeKey       string
}

// CertificateService renders and uploads the completion certificate and badge
// for an enrollment. EnsureArtifacts is idempotent: an enrollment that
// already carries artifact URLs is returned as-is.
type CertificateService interface {
	EnsureArtifacts(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, user *types.User, course *types.Course) (*CertificateArtifacts, error)
}

type certificateService struct {
	db             *gorm.DB
	log            *logger.Logger
	bucket         gcp.BucketService
	enrollmentRepo repos.EnrollmentRepo
	fontData       *truetype.Font
}

func NewCertificateService(db *gorm.DB, baseLog *logger.Logger, bucket gcp.BucketService, enrollmentRepo repos.EnrollmentRepo) (CertificateService, error) {
	svcLog := baseLog.With("service", "CertificateService")

	fontPath := envutil.String("CERTIFICATE_FONT_PATH", "")
	if fontPath == "" {
		return nil, fmt.Errorf("CERTIFICATE_FONT_PATH is required")
	}
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate font: %w", err)
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate font: %w", err)
	}

	return &certificateService{
		db:             db,
		log:            svcLog,
		bucket:         bucket,
		enrollmentRepo: enrollmentRepo,
		fontData:       parsed,
	}, nil
}

func (s *certificateService) face(points float64) font.Face {
	return truetype.NewFace(s.fontData, &truetype.Options{Size: points})
}

func (s *certificateService) EnsureArtifacts(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, user *types.User, course *types.Course) (*CertificateArtifacts, error) {
	if enrollment.CertificateURL != "" && enrollment.BadgeURL != "" {
		prefix := s.bucket.GetPublicURL("")
		return &CertificateArtifacts{
			CertificateURL: enrollment.CertificateURL,
			CertificateKey: strings.TrimPrefix(enrollment.CertificateURL, prefix),
			BadgeURL:       enrollment.BadgeURL,
			BadgeKey:       strings.TrimPrefix(enrollment.BadgeURL, prefix),
		}, nil
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	studentName := user.FullName
	if studentName == "" {
		studentName = user.WhatsappName
	}
	issuedAt := time.Now().UTC()

	certPNG, err := s.renderCertificate(studentName, course.Name, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	badgePNG, err := s.renderBadge(course.Name, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}

	datePart := issuedAt.Format("20060102")
	certKey := fmt.Sprintf("certificates/%s/%s/%s.png", user.ID, course.ID, datePart)
	badgeKey := fmt.Sprintf("badges/%s/%s/%s.png", user.ID, course.ID, datePart)

	if err := s.bucket.UploadFile(ctx, certKey, bytes.NewReader(certPNG)); err != nil {
		return nil, fmt.Errorf("upload certificate: %w", err)
	}
	if err := s.bucket.UploadFile(ctx, badgeKey, bytes.NewReader(badgePNG)); err != nil {
		return nil, fmt.Errorf("upload badge: %w", err)
	}

	artifacts := &CertificateArtifacts{
		CertificateURL: s.bucket.GetPublicURL(certKey),
		CertificateKey: certKey,
		BadgeURL:       s.bucket.GetPublicURL(badgeKey),
		BadgeKey:       badgeKey,
	}
	if err := s.enrollmentRepo.UpdateFields(ctx, transaction, enrollment.ID, map[string]interface{}{
		"certificate_url": artifacts.CertificateURL,
		"badge_url":       artifacts.BadgeURL,
	}); err != nil {
		return nil, err
	}

	s.log.Info("generated completion artifacts", "enrollment_id", enrollment.ID, "certificate_key", certKey)
	return artifacts, nil
}

func (s *certificateService) renderCertificate(studentName, courseName string, issuedAt time.Time) ([]byte, error) {
	dc := gg.NewContext(certWidth, certHeight)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Double border.
	dc.SetColor(color.RGBA{R: 0x81, G: 0xc1, B: 0x42, A: 0xff})
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, certWidth-80, certHeight-80)
	dc.Stroke()
	dc.SetColor(color.RGBA{R: 0xff, G: 0x79, B: 0x00, A: 0xff})
	dc.SetLineWidth(4)
	dc.DrawRectangle(64, 64, certWidth-128, certHeight-128)
	dc.Stroke()

	cx := float64(certWidth) / 2

	dc.SetRGB(0.15, 0.15, 0.15)
	dc.SetFontFace(s.face(64))
	dc.DrawStringAnchored("Certificate of Completion", cx, 220, 0.5, 0.5)

	dc.SetFontFace(s.face(30))
	dc.DrawStringAnchored("This certifies that", cx, 370, 0.5, 0.5)

	dc.SetFontFace(s.face(72))
	dc.DrawStringAnchored(studentName, cx, 490, 0.5, 0.5)

	dc.SetFontFace(s.face(30))
	dc.DrawStringAnchored("has successfully completed the course", cx, 610, 0.5, 0.5)

	dc.SetFontFace(s.face(52))
	dc.DrawStringAnchored(courseName, cx, 720, 0.5, 0.5)

	dc.SetFontFace(s.face(28))
	dc.DrawStringAnchored(issuedAt.Format("January 2, 2006"), cx, 880, 0.5, 0.5)
	dc.DrawStringAnchored("WAppStudy", cx, 960, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *certificateService) renderBadge(courseName string, issuedAt time.Time) ([]byte, error) {
	dc := gg.NewContext(badgeSize, badgeSize)

	c := float64(badgeSize) / 2
	gradient := gg.NewLinearGradient(0, 0, badgeSize, badgeSize)
	gradient.AddColorStop(0.1, color.RGBA{R: 0x81, G: 0xc1, B: 0x42, A: 0xff})
	gradient.AddColorStop(0.9, color.RGBA{R: 0xff, G: 0x79, B: 0x00, A: 0xff})
	dc.SetFillStyle(gradient)
	dc.DrawCircle(c, c, c-10)
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(s.face(26))
	dc.DrawStringWrapped(courseName, c, 210, 0.5, 0.5, badgeSize-120, 1.4, gg.AlignCenter)

	dc.SetFontFace(s.face(20))
	dc.DrawStringAnchored("WAppStudy", c, 330, 0.5, 0.5)
	dc.DrawStringAnchored(issuedAt.Format("02-01-2006"), c, 380, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
