package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"chemformula/internal/auth"
	"chemformula/internal/metrics"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/internal/storage"
	"chemformula/internal/testutil"
	"chemformula/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Publish(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Event: event, Payload: payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

// testEnv wires every service against one sqlite database and a temp
// uploads root.
type testEnv struct {
	db        *gorm.DB
	disk      *storage.Disk
	notifier  *recordingNotifier
	policy    *auth.Policy
	approvals ApprovalService
	resources ResourceService
	formulas  FormulaService
	quotes    QuoteService
	users     UserService
	settings  SettingService
	stats     StatisticsService
}

const testMaxBytes = 1 << 20

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := logger.NewNop()
	disk, err := storage.NewDisk(t.TempDir(), log)
	require.NoError(t, err)

	tx := repository.NewTransactionManager(db)
	activityRepo := repository.NewActivityRepository(db)
	userRepo := repository.NewUserRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	policy := testutil.DefaultPolicy()
	notifier := &recordingNotifier{}
	m := metrics.New()

	approvals := NewApprovalService(ApprovalDeps{
		TxManager: tx,
		Approvals: repository.NewApprovalRepository(db),
		Resources: resourceRepo,
		Formulas:  formulaRepo,
		Quotes:    quoteRepo,
		Users:     userRepo,
		Activity:  activityRepo,
		Policy:    policy,
		Notifier:  notifier,
		Metrics:   m,
		Log:       log,
	})
	settings := NewSettingService(tx, repository.NewSettingRepository(db), activityRepo)

	return &testEnv{
		db:        db,
		disk:      disk,
		notifier:  notifier,
		policy:    policy,
		approvals: approvals,
		resources: NewResourceService(ResourceDeps{
			TxManager: tx,
			Resources: resourceRepo,
			Activity:  activityRepo,
			Approvals: approvals,
			Disk:      disk,
			MaxBytes:  testMaxBytes,
			Metrics:   m,
			Log:       log,
		}),
		formulas: NewFormulaService(tx, formulaRepo, quoteRepo, activityRepo, approvals, log),
		quotes:   NewQuoteService(tx, quoteRepo, formulaRepo, activityRepo, approvals, settings, log),
		users:    NewUserService(tx, userRepo, NewRoleService(repository.NewRoleRepository(db)), activityRepo, policy, log),
		settings: settings,
		stats:    NewStatisticsService(repository.NewStatisticsRepository(db)),
	}
}

func (e *testEnv) principal(t *testing.T, role auth.Role) *auth.Principal {
	t.Helper()
	return testutil.Principal(testutil.CreateUser(t, e.db, role), role)
}

func (e *testEnv) upload(t *testing.T, actor *auth.Principal, category, name, content string) *ResourceResponse {
	t.Helper()
	res, err := e.resources.Upload(context.Background(), actor, UploadInput{
		FileName: name,
		MimeType: "text/plain",
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
		Category: category,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) approvalRows(t *testing.T, entityType string, id uint) []model.Approval {
	t.Helper()
	var rows []model.Approval
	require.NoError(t, e.db.Where("entity_type = ? AND entity_id = ?", entityType, id).Order("id").Find(&rows).Error)
	return rows
}

func (e *testEnv) count(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
