package service

import (
	"context"
	"regexp"
	"strconv"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/internal/repository"
)

const SettingQuoteValidityDays = "quote_validity_days"

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,99}$`)

type UpdateSettingRequest struct {
	Value string `json:"value"`
}

type SettingService interface {
	List(ctx context.Context) ([]model.Setting, error)
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, actor *auth.Principal, key, value string) (*model.Setting, error)
	Int(ctx context.Context, key string, fallback int) int
}

type settingService struct {
	txManager    repository.TransactionManager
	settingRepo  repository.SettingRepository
	activityRepo repository.ActivityRepository
}

func NewSettingService(txManager repository.TransactionManager, settingRepo repository.SettingRepository, activityRepo repository.ActivityRepository) SettingService {
	return &settingService{txManager: txManager, settingRepo: settingRepo, activityRepo: activityRepo}
}

func (s *settingService) List(ctx context.Context) ([]model.Setting, error) {
	settings, err := s.settingRepo.List(ctx)
	if err != nil {
		return nil, loadError(err, model.EntitySetting, "list")
	}
	return settings, nil
}

func (s *settingService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.settingRepo.Get(ctx, key)
	if err != nil {
		return nil, loadError(err, model.EntitySetting, key)
	}
	return setting, nil
}

func (s *settingService) Set(ctx context.Context, actor *auth.Principal, key, value string) (*model.Setting, error) {
	if !settingKeyPattern.MatchString(key) {
		return nil, apperr.Validation("setting key %q is invalid", key)
	}
	setting := &model.Setting{Key: key, Value: value, UpdatedBy: &actor.UserID}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.settingRepo.Upsert(txCtx, setting); err != nil {
			return loadError(err, model.EntitySetting, key)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionSettings, model.EntitySetting, key, map[string]string{"value": value})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

// Int reads a numeric setting, returning fallback when it is missing or not
// a positive integer.
func (s *settingService) Int(ctx context.Context, key string, fallback int) int {
	setting, err := s.settingRepo.Get(ctx, key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
