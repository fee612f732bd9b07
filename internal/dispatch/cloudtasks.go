package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/google/uuid"
	"github.com/smallbiznis/recurra/internal/config"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// CloudTasks enqueues each envelope as a named task in a managed push
// queue, addressed {QueuePrefix}-{queue}, with an OIDC-authenticated HTTP
// callback to the runner's execute endpoint. The task queue delivers the
// body as-is; at-least-once delivery and retry/backoff are the queue's job.
type CloudTasks struct {
	client *cloudtasks.Client
	cfg    config.DispatchConfig
	log    *zap.Logger
}

func NewCloudTasks(ctx context.Context, cfg config.DispatchConfig, log *zap.Logger) (*CloudTasks, error) {
	if cfg.ProjectID == "" || cfg.LocationID == "" {
		return nil, fmt.Errorf("cloud tasks requires project and location")
	}
	if cfg.ExecuteURL == "" {
		return nil, fmt.Errorf("cloud tasks requires an execute callback url")
	}
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create cloud tasks client: %w", err)
	}
	return &CloudTasks{
		client: client,
		cfg:    cfg,
		log:    log.Named("dispatch.cloudtasks"),
	}, nil
}

func (s *CloudTasks) Close() error {
	return s.client.Close()
}

func (s *CloudTasks) Enqueue(ctx context.Context, env jobdomain.Envelope, queue string, opts Options) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s-%s",
		s.cfg.ProjectID, s.cfg.LocationID, s.cfg.QueuePrefix, queue)

	task := &cloudtaskspb.Task{
		// The backend silently deduplicates tasks with a reused name, which
		// would turn a legitimate retry into a no-op. A fresh suffix per
		// logical enqueue keeps every attempt distinct.
		Name: fmt.Sprintf("%s/tasks/%s", queuePath, TaskName(env.JobName)),
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: &cloudtaskspb.HttpRequest{
				Url:        s.cfg.ExecuteURL,
				HttpMethod: cloudtaskspb.HttpMethod_POST,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       body,
				AuthorizationHeader: &cloudtaskspb.HttpRequest_OidcToken{
					OidcToken: &cloudtaskspb.OidcToken{
						ServiceAccountEmail: s.cfg.ServiceAccountEmail,
					},
				},
			},
		},
	}

	if opts.ScheduleTime != nil {
		task.ScheduleTime = timestamppb.New(*opts.ScheduleTime)
	}
	if opts.DispatchDeadline > 0 {
		task.DispatchDeadline = durationpb.New(clampDeadline(opts.DispatchDeadline))
	}

	created, err := s.client.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: queuePath,
		Task:   task,
	})
	if err != nil {
		return "", fmt.Errorf("create task %s on %s: %w", env.JobName, queuePath, err)
	}

	s.log.Debug("task enqueued",
		zap.String("job", env.JobName),
		zap.String("task", created.GetName()),
	)
	return created.GetName(), nil
}

// clampDeadline caps the per-dispatch deadline at the queue backend's
// maximum. Longer-running work belongs in a different execution model.
func clampDeadline(d time.Duration) time.Duration {
	if d > MaxDispatchDeadline {
		return MaxDispatchDeadline
	}
	return d
}

// TaskName builds a unique, queue-safe task id for one logical enqueue.
func TaskName(jobName string) string {
	safe := strings.NewReplacer(".", "-", "/", "-").Replace(jobName)
	return fmt.Sprintf("%s-%s", safe, uuid.NewString())
}
