package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Clients constructs platform API clients from the request's credential
// groups. A new client is built for every attempt so a handle that
// failed once is never reused.
type Clients interface {
	Hosting(HostingCredentials) HostingClient
	Database(DatabaseCredentials) DatabaseClient
	Queue(QueueCredentials) QueueClient
	Cache(CacheCredentials) CacheClient
}

// HostingClient covers the deployment platform: token/project checks,
// env var configuration, redeploys.
type HostingClient interface {
	VerifyProject(ctx context.Context) error
	UpsertEnv(ctx context.Context, vars map[string]string, targets []string) error
	TriggerDeploy(ctx context.Context) (deployID string, err error)
	DeploymentReady(ctx context.Context, deployID string) (bool, error)
}

// DatabaseClient covers the managed-database platform.
type DatabaseClient interface {
	VerifyToken(ctx context.Context) error
	// EnsureProject finds the project matching the configured project
	// URL, creating it when absent, and returns its reference.
	EnsureProject(ctx context.Context) (ref string, err error)
	ProjectActive(ctx context.Context, ref string) (bool, error)
	ResolveKeys(ctx context.Context, ref string) (ProjectKeys, error)
	StorageReady(ctx context.Context, ref string) (bool, error)
}

type QueueClient interface {
	VerifyToken(ctx context.Context) error
}

type CacheClient interface {
	Verify(ctx context.Context) error
}

// Migrator applies pending schema migrations against the provisioned
// database. onRetry fires when the runner's internal connect loop
// re-attempts, so the saga can surface those as retry events.
type Migrator interface {
	Apply(ctx context.Context, dsn string, onRetry func(attempt, max int)) (applied int, err error)
}

// AdminStore bootstraps the administrator account.
type AdminStore interface {
	EnsureAdmin(ctx context.Context, dsn, email, passwordHash string) (created bool, err error)
}

// StepHooks let a running step report intermediate activity without
// touching the event stream directly.
type StepHooks struct {
	// Tick refreshes the current phase's subtitle during long waits.
	Tick func(subtitle string)
	// Retrying reports an internal re-attempt (attempt starts at 1).
	Retrying func(attempt, max int)
}

type StepFunc func(ctx context.Context, h StepHooks) error

// Step is one named unit of work in the fixed pipeline.
type Step struct {
	ID        string
	Title     string
	Subtitle  string
	CredClass ErrorClass
	Retry     RetryPolicy
	Run       StepFunc
}

type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

var defaultRetry = RetryPolicy{MaxAttempts: 3, InitialDelay: 2 * time.Second}

// noRetry marks steps whose failures are never recoverable in place.
// The readiness waits absorb transient faults by continuing to poll,
// so what escapes them is a timeout that needs an upstream fix.
var noRetry = RetryPolicy{MaxAttempts: 1}

// runState carries the values later steps need from earlier ones.
type runState struct {
	projectRef string
	keys       ProjectKeys
	deployID   string
}

// buildSteps assembles the fixed, statically ordered pipeline for one
// run. Each closure constructs its clients fresh on every invocation.
func (s *Saga) buildSteps(req ProvisionRequest, st *runState) []Step {
	return []Step{
		{
			ID:        "verify_hosting",
			Title:     "Checking hosting access",
			Subtitle:  "Verifying the deployment token and project",
			CredClass: ClassHostingToken,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				return s.Clients.Hosting(req.Hosting).VerifyProject(ctx)
			},
		},
		{
			ID:        "ensure_database_project",
			Title:     "Locating database project",
			Subtitle:  "Verifying the access token and finding or creating the project",
			CredClass: ClassDatabasePAT,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				client := s.Clients.Database(req.Database)
				if err := client.VerifyToken(ctx); err != nil {
					return err
				}
				ref, err := client.EnsureProject(ctx)
				if err != nil {
					return err
				}
				st.projectRef = ref
				return nil
			},
		},
		{
			ID:        "wait_database_active",
			Title:     "Waiting for database",
			Subtitle:  "The database project is starting up",
			CredClass: ClassDatabasePAT,
			Retry:     noRetry,
			Run: func(ctx context.Context, h StepHooks) error {
				client := s.Clients.Database(req.Database)
				return WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
					return client.ProjectActive(ctx, st.projectRef)
				}, s.databaseWait(), s.pollInterval(), func(elapsed time.Duration) {
					h.Tick(fmt.Sprintf("The database project is starting up (%s)", elapsed))
				})
			},
		},
		{
			ID:        "resolve_database_keys",
			Title:     "Fetching database keys",
			Subtitle:  "Resolving API keys and the connection string",
			CredClass: ClassDatabasePAT,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				keys, err := s.Clients.Database(req.Database).ResolveKeys(ctx, st.projectRef)
				if err != nil {
					return err
				}
				st.keys = keys
				return nil
			},
		},
		{
			ID:        "verify_queue",
			Title:     "Checking queue access",
			Subtitle:  "Verifying the job queue token",
			CredClass: ClassQueueToken,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				return s.Clients.Queue(req.Queue).VerifyToken(ctx)
			},
		},
		{
			ID:        "verify_cache",
			Title:     "Checking cache access",
			Subtitle:  "Verifying the cache endpoint and token",
			CredClass: ClassCacheToken,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				return s.Clients.Cache(req.Cache).Verify(ctx)
			},
		},
		{
			ID:        "configure_env",
			Title:     "Configuring hosting environment",
			Subtitle:  "Writing environment variables to the hosting project",
			CredClass: ClassHostingToken,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				vars := map[string]string{
					"DATABASE_PROJECT_URL": req.Database.ProjectURL,
					"DATABASE_ANON_KEY":    st.keys.AnonKey,
					"DATABASE_SERVICE_KEY": st.keys.ServiceKey,
					"QUEUE_TOKEN":          req.Queue.Token,
					"QUEUE_SIGNING_KEY":    req.Queue.SigningKey,
					"CACHE_REST_URL":       req.Cache.RESTURL,
					"CACHE_REST_TOKEN":     req.Cache.RESTToken,
				}
				return s.Clients.Hosting(req.Hosting).UpsertEnv(ctx, vars, req.TargetList())
			},
		},
		{
			ID:       "run_migrations",
			Title:    "Applying database schema",
			Subtitle: "Running pending schema migrations",
			Retry:    noRetry,
			Run: func(ctx context.Context, h StepHooks) error {
				client := s.Clients.Database(req.Database)
				err := WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
					return client.StorageReady(ctx, st.projectRef)
				}, s.storageWait(), s.pollInterval(), func(elapsed time.Duration) {
					h.Tick(fmt.Sprintf("Waiting for the storage schema (%s)", elapsed))
				})
				if err != nil {
					return err
				}
				applied, err := s.Migrator.Apply(ctx, st.keys.DSN, h.Retrying)
				if err != nil {
					return err
				}
				slog.Info("migrations applied", "count", applied)
				return nil
			},
		},
		{
			ID:       "bootstrap_admin",
			Title:    "Creating administrator",
			Subtitle: "Bootstrapping the first admin account",
			Retry:    defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				_, err := s.Admins.EnsureAdmin(ctx, st.keys.DSN, req.Admin.Email, req.Admin.PasswordHash)
				return err
			},
		},
		{
			ID:        "trigger_redeploy",
			Title:     "Redeploying",
			Subtitle:  "Triggering a deployment with the new configuration",
			CredClass: ClassHostingToken,
			Retry:     defaultRetry,
			Run: func(ctx context.Context, _ StepHooks) error {
				id, err := s.Clients.Hosting(req.Hosting).TriggerDeploy(ctx)
				if err != nil {
					return err
				}
				st.deployID = id
				return nil
			},
		},
		{
			ID:        "wait_deployment",
			Title:     "Waiting for deployment",
			Subtitle:  "The new deployment is building",
			CredClass: ClassHostingToken,
			Retry:     noRetry,
			Run: func(ctx context.Context, h StepHooks) error {
				client := s.Clients.Hosting(req.Hosting)
				return WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
					return client.DeploymentReady(ctx, st.deployID)
				}, s.deployWait(), s.pollInterval(), func(elapsed time.Duration) {
					h.Tick(fmt.Sprintf("The new deployment is building (%s)", elapsed))
				})
			},
		},
	}
}
