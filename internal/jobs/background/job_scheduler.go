// Package background schedules the recurring maintenance work around the
// command surface: scanning the document inbox and refreshing the vendor
// policy snapshot.
package background

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"ledgerdesk/internal/config"
	"ledgerdesk/internal/repositories"
	"ledgerdesk/internal/services"
)

// JobScheduler manages the recurring background jobs
type JobScheduler struct {
	scheduler gocron.Scheduler
	staging   services.StagingService
	stagingDB repositories.StagingRepository
	docs      services.DocumentService
	policy    services.PolicyService
	cfg       config.Config

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(staging services.StagingService, stagingDB repositories.StagingRepository,
	docs services.DocumentService, policy services.PolicyService, cfg config.Config) (*JobScheduler, error) {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		staging:   staging,
		stagingDB: stagingDB,
		docs:      docs,
		policy:    policy,
		cfg:       cfg,
		jobs:      make(map[string]gocron.Job),
	}
	js.registerJobs()
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	scanJob, err := js.scheduler.NewJob(
		gocron.DurationJob(time.Duration(js.cfg.Staging.ScanIntervalMin)*time.Minute),
		gocron.NewTask(js.scanInbox, context.Background()),
		gocron.WithName("document-inbox-scan"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create inbox scan job: %v", err)
	} else {
		js.jobs["inbox-scan"] = scanJob
	}

	policyJob, err := js.scheduler.NewJob(
		gocron.DurationJob(time.Duration(js.cfg.Policy.SnapshotRefreshMin)*time.Minute),
		gocron.NewTask(js.refreshPolicy, context.Background()),
		gocron.WithName("vendor-policy-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create policy refresh job: %v", err)
	} else {
		js.jobs["policy-refresh"] = policyJob
	}
}

// scanInbox ingests any pending documents into a new staged batch. The
// batch then waits for operator decisions; scanning never posts anything.
func (js *JobScheduler) scanInbox(ctx context.Context) {
	keys, err := js.docs.ListPending(ctx)
	if err != nil {
		log.Printf("Inbox scan failed: %v", err)
		return
	}
	fresh := keys[:0]
	for _, key := range keys {
		ingested, err := js.stagingDB.IsIngested(ctx, key)
		if err != nil {
			log.Printf("Inbox scan failed checking %s: %v", key, err)
			return
		}
		if !ingested {
			fresh = append(fresh, key)
		}
	}
	if len(fresh) == 0 {
		return
	}

	batch, err := js.staging.Ingest(ctx, fresh)
	if err != nil {
		log.Printf("Failed to ingest %d pending documents: %v", len(fresh), err)
		return
	}
	log.Printf("Ingested batch %s with %d documents, %d candidates",
		batch.ID, len(batch.Documents), len(batch.Candidates))
}

func (js *JobScheduler) refreshPolicy(ctx context.Context) {
	if err := js.policy.Reload(ctx); err != nil {
		log.Printf("Vendor policy refresh failed: %v", err)
	}
}
