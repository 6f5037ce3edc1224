package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
	"github.com/noah-isme/academic-records-api/pkg/mail"
)

const (
	JobAdmissionApproved  = "admission.approved"
	JobEnrollmentApproved = "enrollment.approved"
)

type eventPublisher interface {
	Append(ctx context.Context, event repository.ProvisioningEvent) (string, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

type provisioningObserver interface {
	ObserveProvisioning(jobType string, err error)
}

// ProvisioningDispatcher hands approved applications and enrollment requests
// to downstream provisioning. Work runs on a retrying queue after the
// approving transaction has committed.
type ProvisioningDispatcher struct {
	queue   jobQueue
	events  eventPublisher
	mailer  mail.Sender
	metrics provisioningObserver
	logger  *zap.Logger
}

// NewProvisioningDispatcher builds the dispatcher. A nil queue makes it a
// logging no-op; call Handle from the queue's handler.
func NewProvisioningDispatcher(events eventPublisher, mailer mail.Sender, metrics provisioningObserver, logger *zap.Logger) *ProvisioningDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningDispatcher{events: events, mailer: mailer, metrics: metrics, logger: logger}
}

// Attach sets the queue jobs are enqueued on.
func (d *ProvisioningDispatcher) Attach(queue jobQueue) {
	d.queue = queue
}

// ApplicationApproved enqueues provisioning for a newly admitted student.
func (d *ProvisioningDispatcher) ApplicationApproved(ctx context.Context, app models.Application) error {
	return d.enqueue(JobAdmissionApproved, app.ID, app)
}

// EnrollmentApproved enqueues provisioning for an approved enrollment.
func (d *ProvisioningDispatcher) EnrollmentApproved(ctx context.Context, req models.EnrollmentRequest) error {
	return d.enqueue(JobEnrollmentApproved, req.ID, req)
}

func (d *ProvisioningDispatcher) enqueue(jobType, entityID string, payload interface{}) error {
	if d.queue == nil {
		d.logger.Info("provisioning disabled, skipping", zap.String("type", jobType), zap.String("entity_id", entityID))
		return nil
	}
	return d.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload})
}

// Handle processes one provisioning job. Returning an error makes the queue retry.
func (d *ProvisioningDispatcher) Handle(ctx context.Context, job jobs.Job) (err error) {
	defer func() {
		if d.metrics != nil {
			d.metrics.ObserveProvisioning(job.Type, err)
		}
	}()
	switch job.Type {
	case JobAdmissionApproved:
		app, ok := job.Payload.(models.Application)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return d.provisionStudent(ctx, job, app)
	case JobEnrollmentApproved:
		req, ok := job.Payload.(models.EnrollmentRequest)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return d.publish(ctx, job, req.ID, req)
	default:
		d.logger.Warn("unknown provisioning job", zap.String("type", job.Type), zap.String("job_id", job.ID))
		return nil
	}
}

func (d *ProvisioningDispatcher) provisionStudent(ctx context.Context, job jobs.Job, app models.Application) error {
	// A retry after a mail failure republishes; downstream consumers dedupe on entity_id.
	if err := d.publish(ctx, job, app.ID, app); err != nil {
		return err
	}
	if d.mailer == nil || app.ApplicantEmail == "" {
		return nil
	}
	number := ""
	if app.StudentNumber != nil {
		number = *app.StudentNumber
	}
	msg := mail.Message{
		ToName:    app.ApplicantName,
		ToAddress: app.ApplicantEmail,
		Subject:   "Your application has been approved",
		Text:      fmt.Sprintf("Dear %s,\n\nYour application has been approved. Your student number is %s.\n", app.ApplicantName, number),
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify applicant %s: %w", app.ID, err)
	}
	return nil
}

func (d *ProvisioningDispatcher) publish(ctx context.Context, job jobs.Job, entityID string, payload interface{}) error {
	if d.events == nil {
		return nil
	}
	id, err := d.events.Append(ctx, repository.ProvisioningEvent{Type: job.Type, EntityID: entityID, Payload: payload})
	if err != nil {
		return err
	}
	d.logger.Debug("provisioning event published", zap.String("type", job.Type), zap.String("entity_id", entityID), zap.String("stream_id", id))
	return nil
}
