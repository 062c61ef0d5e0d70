package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/common/cache"
	"github.com/nexum-io/nexum/common/compiler"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
)

// RegistryService owns workflow registration, versioning and IR lookup
type RegistryService struct {
	workflows *repository.WorkflowRepository
	irCache   cache.Cache
	cacheTTL  time.Duration
	logger    *logger.Logger
}

// NewRegistryService creates a new registry service. irCache may be nil.
func NewRegistryService(workflows *repository.WorkflowRepository, irCache cache.Cache, cacheTTL time.Duration, log *logger.Logger) *RegistryService {
	return &RegistryService{
		workflows: workflows,
		irCache:   irCache,
		cacheTTL:  cacheTTL,
		logger:    log,
	}
}

// RegisterResult is the outcome of a registration
type RegisterResult struct {
	Compatibility string
	Message       string
}

// Register stores a workflow version and classifies it against the latest
// registered one. ir_json is treated as an opaque blob keyed by
// (workflow_id, version_hash); it is parsed for validation but never
// re-serialised.
func (s *RegistryService) Register(ctx context.Context, workflowID, versionHash, irJSON string) (*RegisterResult, error) {
	if workflowID == "" || versionHash == "" {
		return nil, fmt.Errorf("workflow_id and version_hash are required: %w", models.ErrInvalidArgument)
	}

	newIR, err := compiler.Parse(irJSON)
	if err != nil {
		return nil, err
	}

	// Re-registering an existing version is a no-op
	if _, err := s.workflows.Get(ctx, workflowID, versionHash); err == nil {
		s.logger.Info("workflow version already registered",
			"workflow_id", workflowID,
			"version_hash", versionHash)
		return &RegisterResult{
			Compatibility: models.CompatibilityIdentical,
			Message:       "version already registered",
		}, nil
	}

	compatibility := models.CompatibilityCompatible
	message := "first version"

	latest, err := s.workflows.Latest(ctx, workflowID)
	if err == nil {
		prevIR, parseErr := compiler.Parse(latest.IRJSON)
		if parseErr != nil {
			return nil, fmt.Errorf("stored version %s is unparsable: %w", latest.VersionHash, parseErr)
		}
		compatibility = compiler.Compare(prevIR, newIR)
		message = fmt.Sprintf("compared against %s", latest.VersionHash)
	}

	// Both compatible and breaking versions are stored; running
	// executions keep the version they pinned.
	if err := s.workflows.Create(ctx, &models.WorkflowVersion{
		WorkflowID:  workflowID,
		VersionHash: versionHash,
		IRJSON:      irJSON,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("workflow registered",
		"workflow_id", workflowID,
		"version_hash", versionHash,
		"nodes", len(newIR.Nodes),
		"compatibility", compatibility)

	return &RegisterResult{
		Compatibility: compatibility,
		Message:       message,
	}, nil
}

// ResolveVersion looks up a pinned version; an empty version hash
// resolves to the workflow's most recent one.
func (s *RegistryService) ResolveVersion(ctx context.Context, workflowID, versionHash string) (*models.WorkflowVersion, error) {
	if versionHash == "" {
		return s.workflows.Latest(ctx, workflowID)
	}
	return s.workflows.Get(ctx, workflowID, versionHash)
}

// IR returns the parsed DAG for one workflow version. The raw IR text is
// cached; versions are immutable so staleness is not a concern.
func (s *RegistryService) IR(ctx context.Context, workflowID, versionHash string) (*compiler.IR, error) {
	cacheKey := fmt.Sprintf("ir:%s:%s", workflowID, versionHash)

	if s.irCache != nil {
		if cached, ok, _ := s.irCache.Get(ctx, cacheKey); ok {
			return compiler.Parse(string(cached))
		}
	}

	wv, err := s.workflows.Get(ctx, workflowID, versionHash)
	if err != nil {
		return nil, err
	}

	if s.irCache != nil {
		if err := s.irCache.Set(ctx, cacheKey, []byte(wv.IRJSON), s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache IR", "key", cacheKey, "error", err)
		}
	}

	return compiler.Parse(wv.IRJSON)
}
