package enrollment

import (
	"context"
	"sync"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose import worker runs synchronously:
// StartImport only returns after the whole roster has been processed.
func NewServiceMock(
	repo Repository,
	schoolRepo school.Repository,
	usrSvc user.Service,
	notifier Notifier,
	logger core.Logger,
) Service {
	return &serviceMock{
		service: service{
			repo:       repo,
			schoolRepo: schoolRepo,
			usrSvc:     usrSvc,
			notifier:   notifier,
			logger:     logger,
			syncWorker: true,
		},
	}
}

func (svc *serviceMock) StartImport(ctx context.Context, schoolID, actorID string, imp NewImport) (ImportJob, error) {
	job, err := svc.service.StartImport(ctx, schoolID, actorID, imp)
	if err != nil {
		return ImportJob{}, err
	}
	// the worker ran inline; re-read so callers observe the settled state
	return svc.repo.GetImportJobByID(ctx, job.ID)
}

// NotifierMock records every notification instead of sending it.
type NotifierMock struct {
	mu                sync.Mutex
	StudentWelcomes   []StudentWelcome
	ParentWelcomes    []ParentWelcome
	ParentInvitations []ParentInvitation
}

var _ Notifier = (*NotifierMock)(nil)

func (n *NotifierMock) SendStudentWelcome(m StudentWelcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.StudentWelcomes = append(n.StudentWelcomes, m)
}

func (n *NotifierMock) SendParentWelcome(m ParentWelcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ParentWelcomes = append(n.ParentWelcomes, m)
}

func (n *NotifierMock) SendParentInvitation(m ParentInvitation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ParentInvitations = append(n.ParentInvitations, m)
}
