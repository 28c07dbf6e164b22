package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
)

const defaultActionTimeout = 5 * time.Second

// Config holds orchestrator tuning knobs.
type Config struct {
	// ActionTimeout bounds each individual platform action. A timed-out
	// action is recorded as failed, never left pending.
	ActionTimeout time.Duration
}

// Orchestrator drives a reconciliation run end to end.
type Orchestrator struct {
	store   Store
	chat    ChatPlatform
	storage StoragePlatform
	voice   VoicePlatform
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewOrchestrator creates an orchestrator over the given collaborators.
// metrics may be nil.
func NewOrchestrator(store Store, chat ChatPlatform, storage StoragePlatform, voice VoicePlatform, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	return &Orchestrator{
		store:   store,
		chat:    chat,
		storage: storage,
		voice:   voice,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one reconciliation for a (community, user) pair. Fatal
// pre-condition failures return an aborted result alongside the error; a
// completed run returns a success or partial result with a nil error.
func (o *Orchestrator) Run(ctx context.Context, communityID, chatUserID string) (*Result, error) {
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	logger := o.logger.WithFields(map[string]interface{}{
		"run_id":       runID,
		"community_id": communityID,
		"chat_user_id": chatUserID,
	})

	result := &Result{
		RunID:       runID,
		CommunityID: communityID,
		ChatUserID:  chatUserID,
		StartedAt:   time.Now(),
	}

	abort := func(err error) (*Result, error) {
		result.Status = StatusAborted
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		o.observeRun(result)
		logger.WithError(err).Warn("reconciliation aborted")
		return result, err
	}

	identity, err := o.store.GetIdentity(ctx, chatUserID)
	if err != nil {
		if errors.Is(err, ErrUnlinkedUser) {
			return abort(err)
		}
		return abort(fmt.Errorf("identity lookup failed: %w", err))
	}

	roles, err := o.chat.GetUserRoles(ctx, communityID, chatUserID)
	if err != nil {
		return abort(fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}

	entries, err := o.store.GetMappings(ctx, communityID)
	if err != nil {
		return abort(fmt.Errorf("%w: %v", ErrMappingUnavailable, err))
	}

	desired := Resolve(roles, entries)

	applied, err := o.store.GetAppliedSet(ctx, identity.InternalUserID, communityID)
	if err != nil {
		return abort(fmt.Errorf("failed to load applied permission set: %w", err))
	}

	delta := Diff(desired, applied)
	logger.WithFields(map[string]interface{}{
		"roles":          len(roles),
		"storage_set":    len(delta.StorageSet),
		"storage_revoke": len(delta.StorageRevoke),
		"voice_add":      len(delta.VoiceAdd),
		"voice_remove":   len(delta.VoiceRemove),
	}).Info("computed reconciliation delta")

	result.Outcomes = o.apply(ctx, identity, delta)

	nextApplied := nextAppliedSet(desired, applied, result.Outcomes)
	if err := o.store.SaveAppliedSet(ctx, identity.InternalUserID, communityID, nextApplied); err != nil {
		// The applied set is what guarantees convergence; a failed save
		// must be visible to the caller.
		result.Error = fmt.Sprintf("failed to persist applied permission set: %v", err)
		logger.WithError(err).Error("failed to persist applied permission set")
	}

	// The role snapshot is independent bookkeeping; persist it regardless
	// of platform outcomes.
	snapshot := &RoleSnapshot{
		CommunityID:    communityID,
		InternalUserID: identity.InternalUserID,
		RoleIDs:        roleIDs(roles),
		UpdatedAt:      time.Now(),
	}
	if err := o.store.SaveRoleSnapshot(ctx, snapshot); err != nil {
		logger.WithError(err).Warn("failed to persist role snapshot")
	}

	result.Status = StatusSuccess
	for _, outcome := range result.Outcomes {
		if outcome.Failed() {
			result.Status = StatusPartial
			break
		}
	}
	if result.Error != "" {
		result.Status = StatusPartial
	}

	result.FinishedAt = time.Now()
	o.observeRun(result)
	logger.WithField("status", string(result.Status)).Info("reconciliation finished")
	return result, nil
}

// action is one platform mutation scheduled for concurrent execution.
type action struct {
	platform  string
	kind      platform.Action
	target    string
	simulated bool
	run       func(ctx context.Context) error
}

// apply fans the delta out across both platforms. Storage and voice actions
// run concurrently with each other, and actions within a platform run
// concurrently too since they target disjoint items and groups. One action's
// failure never aborts its siblings.
func (o *Orchestrator) apply(ctx context.Context, identity *UserIdentity, delta *Delta) []platform.Outcome {
	var actions []action
	var skipped []platform.Outcome

	storageActions := buildStorageActions(o.storage, identity, delta)
	if identity.StorageLinked() {
		actions = append(actions, storageActions...)
	} else {
		for _, act := range storageActions {
			skipped = append(skipped, platform.Outcome{
				Platform: act.platform,
				Action:   act.kind,
				Target:   act.target,
				Status:   platform.StatusSkipped,
				Error:    "storage identity not linked",
			})
		}
	}

	voiceActions := buildVoiceActions(o.voice, identity, delta)
	if identity.VoiceLinked() {
		actions = append(actions, voiceActions...)
	} else {
		for _, act := range voiceActions {
			skipped = append(skipped, platform.Outcome{
				Platform: act.platform,
				Action:   act.kind,
				Target:   act.target,
				Status:   platform.StatusSkipped,
				Error:    "voice identity not linked",
			})
		}
	}

	outcomes := make([]platform.Outcome, len(actions))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, act := range actions {
		i, act := i, act
		eg.Go(func() error {
			outcomes[i] = o.execute(egCtx, act)
			// Errors are captured in the outcome; returning nil keeps
			// sibling actions running.
			return nil
		})
	}
	// Every goroutine returns nil; Wait is just the join point.
	_ = eg.Wait()

	return append(outcomes, skipped...)
}

// execute runs a single action under the per-action timeout.
func (o *Orchestrator) execute(ctx context.Context, act action) platform.Outcome {
	outcome := platform.Outcome{
		Platform:  act.platform,
		Action:    act.kind,
		Target:    act.target,
		Simulated: act.simulated,
	}

	actionCtx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
	defer cancel()

	err := act.run(actionCtx)
	if err != nil {
		outcome.Status = platform.StatusFailed
		if platform.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			outcome.Error = fmt.Sprintf("timed out after %s: %v", o.cfg.ActionTimeout, err)
		} else {
			outcome.Error = err.Error()
		}
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"platform": act.platform,
			"action":   string(act.kind),
			"target":   act.target,
		}).WithError(err).Warn("platform action failed")
		return outcome
	}

	outcome.Status = platform.StatusApplied
	return outcome
}

func buildStorageActions(storage StoragePlatform, identity *UserIdentity, delta *Delta) []action {
	var actions []action
	for item, level := range delta.StorageSet {
		item, level := item, level
		actions = append(actions, action{
			platform:  platform.GDrive,
			kind:      platform.ActionGrant,
			target:    item,
			simulated: storage.Simulated(),
			run: func(ctx context.Context) error {
				return storage.SetPermission(ctx, identity.StorageIdentity, item, level)
			},
		})
	}
	for _, item := range delta.StorageRevoke {
		item := item
		actions = append(actions, action{
			platform:  platform.GDrive,
			kind:      platform.ActionRevoke,
			target:    item,
			simulated: storage.Simulated(),
			run: func(ctx context.Context) error {
				return storage.RevokePermission(ctx, identity.StorageIdentity, item)
			},
		})
	}
	return actions
}

func buildVoiceActions(voice VoicePlatform, identity *UserIdentity, delta *Delta) []action {
	var actions []action
	for _, group := range delta.VoiceAdd {
		group := group
		actions = append(actions, action{
			platform:  platform.TeamSpeak,
			kind:      platform.ActionAddGroup,
			target:    group,
			simulated: voice.Simulated(),
			run: func(ctx context.Context) error {
				return voice.AddToGroup(ctx, identity.VoiceUniqueID, group)
			},
		})
	}
	for _, group := range delta.VoiceRemove {
		group := group
		actions = append(actions, action{
			platform:  platform.TeamSpeak,
			kind:      platform.ActionRemoveGroup,
			target:    group,
			simulated: voice.Simulated(),
			run: func(ctx context.Context) error {
				return voice.RemoveFromGroup(ctx, identity.VoiceUniqueID, group)
			},
		})
	}
	return actions
}

// nextAppliedSet computes the applied set to persist: the desired set minus
// anything whose apply action did not succeed. A failed or skipped add is
// left out so the next run retries it; a failed or skipped remove keeps the
// previously applied entry, at its old level for storage grants.
func nextAppliedSet(desired, applied *PermissionSet, outcomes []platform.Outcome) *PermissionSet {
	next := desired.Clone()

	for _, outcome := range outcomes {
		if outcome.Status == platform.StatusApplied {
			continue
		}
		switch outcome.Action {
		case platform.ActionGrant:
			if previous, ok := applied.Storage[outcome.Target]; ok {
				next.Storage[outcome.Target] = previous
			} else {
				delete(next.Storage, outcome.Target)
			}
		case platform.ActionRevoke:
			if previous, ok := applied.Storage[outcome.Target]; ok {
				next.Storage[outcome.Target] = previous
			}
		case platform.ActionAddGroup:
			delete(next.Voice, outcome.Target)
		case platform.ActionRemoveGroup:
			next.Voice[outcome.Target] = struct{}{}
		}
	}

	return next
}

func (o *Orchestrator) observeRun(result *Result) {
	if o.metrics == nil {
		return
	}
	o.metrics.RunsTotal.WithLabelValues(string(result.Status)).Inc()
	o.metrics.RunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	for _, outcome := range result.Outcomes {
		o.metrics.ActionsTotal.WithLabelValues(outcome.Platform, string(outcome.Action), string(outcome.Status)).Inc()
	}
}

func roleIDs(roles []Role) []string {
	ids := make([]string, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}
