package service

import (
	"context"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
)

type JobService struct {
	Repo *repository.JobRepository
}

func NewJobService(repo *repository.JobRepository) *JobService {
	return &JobService{Repo: repo}
}

type CreateJobRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	CompanyID   *uint  `json:"companyId"`
}

func (s *JobService) Create(ctx context.Context, claims *util.Claims, req CreateJobRequest) (*model.JobPost, error) {
	if claims == nil {
		return nil, util.NewUnauthorizedError("authentication required")
	}
	companyID := claims.CompanyID
	if claims.IsAdmin() && req.CompanyID != nil {
		companyID = *req.CompanyID
	}
	if companyID == 0 {
		return nil, util.NewValidationError("companyId is required")
	}
	job := &model.JobPost{
		CompanyID:   companyID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Status:      model.JobOpen,
		CreatedByID: claims.UserID,
	}
	if err := s.Repo.CreateJob(ctx, job); err != nil {
		return nil, util.NewInternalError("create job", err)
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, claims *util.Claims, page, limit int) (*util.PageResponse, error) {
	page, limit = util.ClampPage(page, limit)
	jobs, total, err := s.Repo.ListJobs(ctx, companyScope(claims), page, limit)
	if err != nil {
		return nil, util.NewInternalError("list jobs", err)
	}
	return &util.PageResponse{List: jobs, Total: total, Page: page, Limit: limit}, nil
}

func (s *JobService) Get(ctx context.Context, claims *util.Claims, id string) (*model.JobPost, error) {
	job, err := s.Repo.FindJobByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Job post")
	}
	if err := ensureCompanyAccess(claims, job.CompanyID, "Job post"); err != nil {
		return nil, err
	}
	return job, nil
}

type CreateResumeRequest struct {
	CandidateName  string `json:"candidateName" binding:"required"`
	CandidateEmail string `json:"candidateEmail" binding:"omitempty,email"`
	Phone          string `json:"phone"`
	FileURL        string `json:"fileUrl"`
	Content        string `json:"content"`
}

func (s *JobService) AddResume(ctx context.Context, claims *util.Claims, jobID string, req CreateResumeRequest) (*model.Resume, error) {
	job, err := s.Get(ctx, claims, jobID)
	if err != nil {
		return nil, err
	}
	resume := &model.Resume{
		JobPostID:      job.ID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		Phone:          req.Phone,
		FileURL:        req.FileURL,
		Content:        req.Content,
	}
	if err := s.Repo.CreateResume(ctx, resume); err != nil {
		return nil, util.NewInternalError("create resume", err)
	}
	return resume, nil
}

func (s *JobService) ListResumes(ctx context.Context, claims *util.Claims, jobID string) ([]model.Resume, error) {
	job, err := s.Get(ctx, claims, jobID)
	if err != nil {
		return nil, err
	}
	resumes, err := s.Repo.ListResumes(ctx, job.ID)
	if err != nil {
		return nil, util.NewInternalError("list resumes", err)
	}
	return resumes, nil
}
