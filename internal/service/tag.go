package service

import (
	"context"
	"strings"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
)

type TagService struct {
	tagRepo repository.TagRepository
}

func NewTagService(tagRepo repository.TagRepository) *TagService {
	return &TagService{tagRepo: tagRepo}
}

func (s *TagService) List(ctx context.Context, nameFilter string) ([]model.Tag, error) {
	tags, err := s.tagRepo.FindAll(ctx, nameFilter)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tags, nil
}

func (s *TagService) Get(ctx context.Context, id int64) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if tag == nil {
		return nil, apperrors.NotFound("Tag")
	}
	return tag, nil
}

// FindOrCreate returns the existing tag with the given name
// (case-insensitive) or creates it.
func (s *TagService) FindOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	existing, err := s.tagRepo.FindByName(ctx, name)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return existing, nil
	}

	tag, err := s.tagRepo.Create(ctx, name)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tag, nil
}
