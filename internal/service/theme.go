package service

import (
	"context"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
)

type ThemeLister interface {
	ListThemes(ctx context.Context) ([]domain.Theme, error)
}

type ThemeService struct {
	lister ThemeLister
	logger *log.StructuredLogger
}

func NewThemeService(lister ThemeLister) *ThemeService {
	return &ThemeService{lister: lister, logger: log.NewDebugLogger("theme_service")}
}

// ListThemes asks the document provider for its themes on every call.
func (t *ThemeService) ListThemes(ctx context.Context) (*api.ThemeList, error) {
	tracer := t.logger.WithContext(ctx).Operation("list_themes").Build()

	themes, err := t.lister.ListThemes(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, NewErrProviderUnavailable("gamma", err)
	}

	list := &api.ThemeList{Themes: make([]api.Theme, 0, len(themes)), Count: len(themes)}
	for _, th := range themes {
		list.Themes = append(list.Themes, api.Theme{ID: th.ID, Name: th.Name, Type: th.Type})
	}

	tracer.Success().WithInt("count", list.Count).Log()
	return list, nil
}
