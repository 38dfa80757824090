package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 候选人答复期限
const offerResponseWindow = 7 * 24 * time.Hour

type OfferService struct {
	Repo     *repository.OfferRepository
	Jobs     *repository.JobRepository
	Users    *repository.UserRepository
	Stages   *repository.AssessmentStageRepository
	Notifier *NotificationService
	now      func() time.Time
}

func NewOfferService(repo *repository.OfferRepository, jobs *repository.JobRepository, users *repository.UserRepository,
	stages *repository.AssessmentStageRepository, notifier *NotificationService) *OfferService {
	return &OfferService{Repo: repo, Jobs: jobs, Users: users, Stages: stages, Notifier: notifier, now: time.Now}
}

type CreateOfferRequest struct {
	JobPostID       string     `json:"jobPostId" binding:"required"`
	ResumeID        string     `json:"resumeId" binding:"required"`
	OfferedPosition string     `json:"offeredPosition" binding:"required"`
	Salary          string     `json:"salary" binding:"required"`
	JoiningDate     *time.Time `json:"joiningDate"`
	Notes           string     `json:"notes"`
}

func (s *OfferService) Create(ctx context.Context, claims *util.Claims, req CreateOfferRequest) (*model.OfferLetter, error) {
	job, err := s.Jobs.FindJobByID(ctx, req.JobPostID)
	if err != nil {
		return nil, lookupError(err, "Job post")
	}
	if err := ensureCompanyAccess(claims, job.CompanyID, "Job post"); err != nil {
		return nil, err
	}
	resume, err := s.Jobs.FindResumeByID(ctx, req.ResumeID)
	if err != nil || resume.JobPostID != job.ID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewInternalError("load resume", err)
		}
		return nil, util.NewNotFoundError("Resume not found for this job")
	}
	if strings.TrimSpace(req.OfferedPosition) == "" || strings.TrimSpace(req.Salary) == "" {
		return nil, util.NewValidationError("offeredPosition and salary are required")
	}

	if open, err := s.Repo.FindOpenForResume(ctx, resume.ID); err == nil {
		return nil, util.NewConflictError("Candidate already has an open offer").With("offerId", open.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewInternalError("lookup offers", err)
	}

	offer := &model.OfferLetter{
		CompanyID:       job.CompanyID,
		JobPostID:       job.ID,
		ResumeID:        resume.ID,
		CreatedByID:     claims.UserID,
		OfferedPosition: strings.TrimSpace(req.OfferedPosition),
		Salary:          strings.TrimSpace(req.Salary),
		JoiningDate:     req.JoiningDate,
		OfferDate:       s.now(),
		Notes:           req.Notes,
		Status:          model.OfferPending,
	}
	if err := s.Repo.Create(ctx, offer); err != nil {
		return nil, util.NewInternalError("create offer", err)
	}
	offer.JobPost = job
	offer.Resume = resume

	logger.Log.Info("offer created", zap.String("offerId", offer.ID), zap.String("resumeId", resume.ID), zap.Uint("by", claims.UserID))
	return offer, nil
}

type OfferListQuery struct {
	JobPostID string            `form:"jobId"`
	Status    model.OfferStatus `form:"status"`
	Page      int               `form:"page"`
	Limit     int               `form:"limit"`
}

func (s *OfferService) List(ctx context.Context, claims *util.Claims, q OfferListQuery) (*util.PageResponse, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, util.NewValidationError("invalid offer status").With("status", q.Status)
	}
	page, limit := util.ClampPage(q.Page, q.Limit)
	list, total, err := s.Repo.List(ctx, repository.OfferFilter{
		CompanyID: companyScope(claims),
		JobPostID: q.JobPostID,
		Status:    q.Status,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, util.NewInternalError("list offers", err)
	}
	return &util.PageResponse{List: list, Total: total, Page: page, Limit: limit}, nil
}

// OfferDetail 录用通知连同候选人已完成的测评结果
type OfferDetail struct {
	*model.OfferLetter
	MCQResult    *OfferMCQResult    `json:"mcqResults"`
	MeetingNotes *OfferMeetingNotes `json:"meetingNotes"`
}

type OfferMCQResult struct {
	Score          float64    `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	CompletedAt    *time.Time `json:"completedAt"`
}

type OfferMeetingNotes struct {
	Feedback    string     `json:"feedback"`
	Rating      *int       `json:"rating"`
	Notes       string     `json:"notes"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (s *OfferService) Get(ctx context.Context, claims *util.Claims, id string) (*OfferDetail, error) {
	offer, err := s.load(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	detail := &OfferDetail{OfferLetter: offer}

	if stage, ok := s.completedStage(ctx, offer, model.StageMCQ); ok {
		result := &OfferMCQResult{CompletedAt: stage.CompletedAt}
		if stage.ResultScore != nil {
			result.Score = *stage.ResultScore
		}
		if stage.MCQAssessment != nil {
			result.TotalQuestions = len(stage.MCQAssessment.Questions)
		}
		detail.MCQResult = result
	}
	if stage, ok := s.completedStage(ctx, offer, model.StageManual); ok {
		notes := &OfferMeetingNotes{Notes: stage.Notes, CompletedAt: stage.CompletedAt}
		if stage.ManualMeeting != nil {
			notes.Feedback = stage.ManualMeeting.Feedback
			notes.Rating = stage.ManualMeeting.Rating
		}
		detail.MeetingNotes = notes
	}
	return detail, nil
}

// completedStage 查询失败只记日志，详情照常返回
func (s *OfferService) completedStage(ctx context.Context, offer *model.OfferLetter, typ model.StageType) (*model.AssessmentStage, bool) {
	stages, _, err := s.Stages.List(ctx, repository.StageFilter{
		JobPostID: offer.JobPostID,
		ResumeID:  offer.ResumeID,
		Type:      typ,
		Status:    model.StageCompleted,
		Page:      1,
		Limit:     1,
	})
	if err != nil {
		logger.Log.Warn("load stage for offer failed", zap.String("offerId", offer.ID), zap.Error(err))
		return nil, false
	}
	if len(stages) == 0 {
		return nil, false
	}
	stage, err := s.Stages.FindWithDetails(ctx, stages[0].ID)
	if err != nil {
		logger.Log.Warn("load stage details for offer failed", zap.String("stageId", stages[0].ID), zap.Error(err))
		return &stages[0], true
	}
	return stage, true
}

type UpdateOfferRequest struct {
	OfferedPosition *string            `json:"offeredPosition"`
	Salary          *string            `json:"salary"`
	JoiningDate     *time.Time         `json:"joiningDate"`
	Notes           *string            `json:"notes"`
	Status          *model.OfferStatus `json:"status"`
	ResponseNotes   *string            `json:"responseNotes"`
}

// Update 结束后的录用通知不可再修改；发出时通知候选人
func (s *OfferService) Update(ctx context.Context, claims *util.Claims, id string, req UpdateOfferRequest) (*model.OfferLetter, error) {
	offer, err := s.load(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if offer.Status.Terminal() {
		return nil, util.NewConflictError("Offer is already " + string(offer.Status)).With("status", offer.Status)
	}

	updates := map[string]interface{}{}
	if req.OfferedPosition != nil {
		if strings.TrimSpace(*req.OfferedPosition) == "" {
			return nil, util.NewValidationError("offeredPosition must not be empty")
		}
		updates["offered_position"] = strings.TrimSpace(*req.OfferedPosition)
	}
	if req.Salary != nil {
		if strings.TrimSpace(*req.Salary) == "" {
			return nil, util.NewValidationError("salary must not be empty")
		}
		updates["salary"] = strings.TrimSpace(*req.Salary)
	}
	if req.JoiningDate != nil {
		updates["joining_date"] = *req.JoiningDate
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.ResponseNotes != nil {
		updates["response_notes"] = *req.ResponseNotes
	}

	sending := false
	if req.Status != nil && *req.Status != offer.Status {
		next := *req.Status
		if !next.Valid() {
			return nil, util.NewValidationError("invalid offer status").With("status", next)
		}
		if !offer.Status.CanTransitionTo(next) {
			return nil, util.NewConflictError(fmt.Sprintf("Offer cannot move from %s to %s", offer.Status, next)).
				With("status", offer.Status)
		}
		now := s.now()
		updates["status"] = next
		switch next {
		case model.OfferSent:
			updates["sent_at"] = now
			sending = true
		case model.OfferAccepted, model.OfferRejected:
			updates["responded_at"] = now
		}
	}
	if len(updates) == 0 {
		return offer, nil
	}

	n, err := s.Repo.UpdateIfStatus(ctx, offer.ID, offer.Status, updates)
	if err != nil {
		return nil, util.NewInternalError("update offer", err)
	}
	if n == 0 {
		return nil, util.NewConflictError("Offer was modified concurrently")
	}

	updated, err := s.Repo.FindByID(ctx, offer.ID)
	if err != nil {
		return nil, util.NewInternalError("reload offer", err)
	}
	if sending {
		s.notifySent(ctx, updated)
	}
	logger.Log.Info("offer updated", zap.String("offerId", offer.ID), zap.String("status", string(updated.Status)))
	return updated, nil
}

func (s *OfferService) notifySent(ctx context.Context, offer *model.OfferLetter) {
	if offer.Resume == nil || offer.Resume.CandidateEmail == "" {
		logger.Log.Warn("offer sent without candidate email", zap.String("offerId", offer.ID))
		return
	}
	view := s.letterView(ctx, offer)
	s.Notifier.Notify(ctx, Notification{
		Email:   offer.Resume.CandidateEmail,
		Name:    offer.Resume.CandidateName,
		Subject: fmt.Sprintf("Your offer from %s", view.CompanyName),
		Body: fmt.Sprintf("Dear %s,\n\nWe are pleased to offer you the position of %s at %s.\nSalary: %s\nJoining date: %s\n\nPlease respond by %s.\n",
			view.CandidateName, offer.OfferedPosition, view.CompanyName, offer.Salary, view.JoiningDate, view.RespondBy),
		Alert: fmt.Sprintf("Offer sent to %s for %s", view.CandidateName, offer.OfferedPosition),
	})
}

func (s *OfferService) Delete(ctx context.Context, claims *util.Claims, id string) error {
	offer, err := s.load(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, offer.ID); err != nil {
		return util.NewInternalError("delete offer", err)
	}
	logger.Log.Info("offer deleted", zap.String("offerId", offer.ID), zap.Uint("by", claims.UserID))
	return nil
}

// Letter 生成可打印的录用通知 HTML
func (s *OfferService) Letter(ctx context.Context, claims *util.Claims, id string) ([]byte, error) {
	offer, err := s.load(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := offerLetterTemplate.Execute(&buf, s.letterView(ctx, offer)); err != nil {
		return nil, util.NewInternalError("render offer letter", err)
	}
	return buf.Bytes(), nil
}

func (s *OfferService) load(ctx context.Context, claims *util.Claims, id string) (*model.OfferLetter, error) {
	offer, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Offer")
	}
	if err := ensureCompanyAccess(claims, offer.CompanyID, "Offer"); err != nil {
		return nil, err
	}
	return offer, nil
}

type offerLetterView struct {
	CompanyName     string
	Location        string
	OfferDate       string
	CandidateName   string
	CandidateEmail  string
	CandidatePhone  string
	OfferedPosition string
	Salary          string
	JoiningDate     string
	Notes           string
	RespondBy       string
	SignedBy        string
	GeneratedOn     string
}

const letterDateLayout = "January 2, 2006"

func (s *OfferService) letterView(ctx context.Context, offer *model.OfferLetter) offerLetterView {
	view := offerLetterView{
		OfferDate:       offer.OfferDate.Format(letterDateLayout),
		OfferedPosition: offer.OfferedPosition,
		Salary:          offer.Salary,
		JoiningDate:     "To be determined",
		Notes:           offer.Notes,
		RespondBy:       offer.OfferDate.Add(offerResponseWindow).Format(letterDateLayout),
		SignedBy:        "HR Team",
		GeneratedOn:     s.now().Format(letterDateLayout),
	}
	if offer.JoiningDate != nil {
		view.JoiningDate = offer.JoiningDate.Format(letterDateLayout)
	}
	if offer.Resume != nil {
		view.CandidateName = offer.Resume.CandidateName
		view.CandidateEmail = offer.Resume.CandidateEmail
		view.CandidatePhone = offer.Resume.Phone
	}
	if offer.JobPost != nil {
		view.Location = offer.JobPost.Location
	}
	if company, err := s.Users.FindCompanyByID(ctx, offer.CompanyID); err == nil {
		view.CompanyName = company.Name
	}
	if creator, err := s.Users.FindByID(ctx, offer.CreatedByID); err == nil && creator.Name != "" {
		view.SignedBy = creator.Name
	}
	return view
}

var offerLetterTemplate = template.Must(template.New("offer").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Offer Letter - {{.CandidateName}}</title>
<style>
body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 40px; color: #333; line-height: 1.6; }
.header { text-align: center; border-bottom: 2px solid #1890ff; padding-bottom: 20px; margin-bottom: 30px; }
.company-name { font-size: 28px; font-weight: bold; color: #1890ff; }
.offer-details { background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0; }
.detail-row { display: flex; margin-bottom: 8px; }
.detail-label { font-weight: bold; width: 150px; }
.signature-section { display: flex; justify-content: space-between; margin-top: 60px; }
.signature-line { border-top: 1px solid #333; width: 200px; margin-bottom: 5px; }
.footer { margin-top: 40px; font-size: 12px; color: #999; text-align: center; }
</style>
</head>
<body>
<div class="header">
  <div class="company-name">{{.CompanyName}}</div>
  <div>{{.Location}}</div>
</div>
<p>{{.OfferDate}}</p>
<p><strong>{{.CandidateName}}</strong><br>
{{if .CandidateEmail}}Email: {{.CandidateEmail}}<br>{{end}}
{{if .CandidatePhone}}Phone: {{.CandidatePhone}}{{end}}</p>

<h2>Job Offer Letter</h2>
<p>Dear {{.CandidateName}},</p>
<p>We are pleased to offer you the position of <strong>{{.OfferedPosition}}</strong> at {{.CompanyName}}.
After careful consideration of your qualifications and experience, we believe you would be a valuable addition to our team.</p>

<div class="offer-details">
  <h3>Offer Details</h3>
  <div class="detail-row"><span class="detail-label">Position:</span><span>{{.OfferedPosition}}</span></div>
  <div class="detail-row"><span class="detail-label">Company:</span><span>{{.CompanyName}}</span></div>
  <div class="detail-row"><span class="detail-label">Location:</span><span>{{.Location}}</span></div>
  <div class="detail-row"><span class="detail-label">Salary:</span><span>{{.Salary}}</span></div>
  <div class="detail-row"><span class="detail-label">Joining Date:</span><span>{{.JoiningDate}}</span></div>
</div>

<p>This offer is contingent upon your acceptance and successful completion of any remaining pre-employment requirements.</p>
{{if .Notes}}<p><strong>Additional Notes:</strong><br>{{.Notes}}</p>{{end}}
<p>Please respond to this offer by {{.RespondBy}}. If you have any questions, please don't hesitate to contact us.</p>
<p>We look forward to welcoming you to our team!</p>
<p>Sincerely,<br>{{.SignedBy}}<br>{{.CompanyName}}</p>

<div class="signature-section">
  <div><div class="signature-line"></div><div>Candidate Signature</div></div>
  <div><div class="signature-line"></div><div>HR Representative</div></div>
</div>

<div class="footer">
  <p>This offer letter is confidential and intended solely for the recipient.</p>
  <p>Generated on {{.GeneratedOn}}</p>
</div>
</body>
</html>
`))
