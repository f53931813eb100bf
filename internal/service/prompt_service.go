package service

import (
	"context"
	"errors"
	"strings"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/logger"
)

var ErrPromptNotFound = errors.New("system prompt not found")

// PromptService manages the system prompts sent ahead of user messages
type PromptService struct {
	repo          repository.PromptRepository
	defaultPrompt string
	log           *logger.Logger
}

func NewPromptService(repo repository.PromptRepository, defaultPrompt string, log *logger.Logger) *PromptService {
	return &PromptService{repo: repo, defaultPrompt: defaultPrompt, log: log.WithComponent("prompt_service")}
}

func (s *PromptService) List(ctx context.Context) ([]models.SystemPrompt, error) {
	return s.repo.List(ctx, repository.OrderBy("created_at DESC"))
}

func (s *PromptService) Get(ctx context.Context, id uint) (*models.SystemPrompt, error) {
	p, err := s.repo.Get(ctx, id)
	return p, notFound(err, ErrPromptNotFound)
}

// Create stores a new, inactive prompt
func (s *PromptService) Create(ctx context.Context, req *models.SystemPromptRequest) (*models.SystemPrompt, error) {
	p := models.SystemPrompt{
		Name:    strings.TrimSpace(req.Name),
		Content: strings.TrimSpace(req.Content),
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PromptService) Update(ctx context.Context, id uint, req *models.SystemPromptRequest) (*models.SystemPrompt, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(req.Name)
	p.Content = strings.TrimSpace(req.Content)
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PromptService) Delete(ctx context.Context, id uint) error {
	return notFound(s.repo.Delete(ctx, id), ErrPromptNotFound)
}

// Activate makes the prompt the only active one
func (s *PromptService) Activate(ctx context.Context, id uint) (*models.SystemPrompt, error) {
	p, err := s.repo.Activate(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPromptNotFound)
	}
	s.log.Info("System prompt activated", "prompt_id", p.ID, "name", p.Name)
	return p, nil
}

// ActiveContent returns the active prompt text, or the built-in default when
// no prompt is active or the lookup fails.
func (s *PromptService) ActiveContent(ctx context.Context) string {
	p, err := s.repo.Active(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.LogError(err, "Failed to load active system prompt, using default")
		}
		return s.defaultPrompt
	}
	return p.Content
}

// notFound maps repository.ErrNotFound to the domain error target.
func notFound(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
