package audioswitch

import (
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// SwitchController executes the endpoint switch transaction for a profile.
// The OS offers no transaction primitive, so the controller snapshots the visible
// endpoints first and restores them if any step fails
type SwitchController struct {
	logger    *zap.SugaredLogger
	directory EndpointDirectory
	policy    EndpointPolicy
}

type endpointSnapshot struct {
	visible  []EndpointRef
	defaults map[Role]string
}

// switchTransaction tracks the state of a single SwitchTo call
type switchTransaction struct {
	snapshot *endpointSnapshot

	// endpoints made visible by the select phase
	shown []EndpointRef
}

// NewSwitchController creates a controller bound to a directory and policy from the same AudioSession
func NewSwitchController(logger *zap.SugaredLogger, directory EndpointDirectory, policy EndpointPolicy) *SwitchController {
	return &SwitchController{
		logger:    logger.Named("switch"),
		directory: directory,
		policy:    policy,
	}
}

// SwitchTo makes the profile's input and output the only visible endpoints of
// their roles and assigns them as defaults. On failure the visible set that existed
// before the call is restored and a *SwitchError is returned
func (sc *SwitchController) SwitchTo(profile Profile) error {
	logger := sc.logger.With("profile", profile.Name)

	input := profile.Input
	input.Role = RoleInput
	output := profile.Output
	output.Role = RoleOutput

	if input.ID == "" || output.ID == "" {
		logger.Warnw("Profile is missing a target endpoint", "inputID", input.ID, "outputID", output.ID)
		return &SwitchError{ProfileName: profile.Name}
	}

	logger.Debugw("Switching profile", "input", input, "output", output)

	// step 1: whatever is visible now is what we roll back to
	snapshot, err := sc.takeSnapshot()
	if err != nil {
		logger.Warnw("Failed to snapshot visible endpoints", "error", err)
		return &SwitchError{ProfileName: profile.Name}
	}

	tx := &switchTransaction{snapshot: snapshot}

	// step 2: hide every visible endpoint so the default assignment can't be ambiguous
	if err := sc.hideAll(tx); err != nil {
		return sc.abort(logger, profile, tx, "disable", err)
	}

	// step 3: bring back the targets and make them the defaults
	for _, target := range []EndpointRef{input, output} {
		if err := sc.selectEndpoint(tx, target); err != nil {
			return sc.abort(logger, profile, tx, "select", err)
		}
	}

	logger.Infow("Activated profile", "input", input, "output", output)

	return nil
}

func (sc *SwitchController) takeSnapshot() (*endpointSnapshot, error) {
	snapshot := &endpointSnapshot{
		defaults: make(map[Role]string),
	}

	for _, role := range roles {
		endpoints, err := sc.directory.ListActive(role)
		if err != nil {
			return nil, err
		}

		snapshot.visible = append(snapshot.visible, endpoints...)

		// a missing default isn't fatal, rollback just won't re-assign one for this role
		defaultID, err := sc.directory.DefaultEndpoint(role)
		if err != nil {
			sc.logger.Debugw("Failed to get default endpoint for snapshot", "role", role, "error", err)
			continue
		}
		snapshot.defaults[role] = defaultID
	}

	sc.logger.Debugw("Took endpoint snapshot", "visible", len(snapshot.visible), "defaults", snapshot.defaults)

	return snapshot, nil
}

func (sc *SwitchController) hideAll(tx *switchTransaction) error {
	for _, endpoint := range tx.snapshot.visible {
		if err := sc.policy.SetVisibility(endpoint, false); err != nil {
			return &VisibilityToggleError{Endpoint: endpoint, Visible: false, Err: err}
		}
	}

	return nil
}

func (sc *SwitchController) selectEndpoint(tx *switchTransaction, target EndpointRef) error {
	if err := sc.policy.SetVisibility(target, true); err != nil {
		return &VisibilityToggleError{Endpoint: target, Visible: true, Err: err}
	}
	tx.shown = append(tx.shown, target)

	if err := sc.policy.SetDefault(target); err != nil {
		return &DefaultAssignmentError{Endpoint: target, Err: err}
	}

	return nil
}

// abort rolls back and reports the original failure, never the rollback's
func (sc *SwitchController) abort(
	logger *zap.SugaredLogger,
	profile Profile,
	tx *switchTransaction,
	phase string,
	cause error,
) error {
	logger.Warnw("Profile switch failed, rolling back", "phase", phase, "error", cause)

	failures := sc.rollback(logger, tx)
	if failures > 0 {
		logger.Errorw("Rollback incomplete, endpoint state may differ from before the switch", "failures", failures)
	} else {
		logger.Debug("Rolled back to pre-switch endpoints")
	}

	return &SwitchError{
		ProfileName:        profile.Name,
		RollbackIncomplete: failures > 0,
	}
}

// rollback restores the snapshot's visible set and defaults, returning the number of failed calls
func (sc *SwitchController) rollback(logger *zap.SugaredLogger, tx *switchTransaction) int {
	failures := 0
	snapshotIDs := tx.snapshot.ids()

	for _, endpoint := range tx.shown {
		if funk.ContainsString(snapshotIDs, endpoint.ID) {
			continue
		}

		if err := sc.policy.SetVisibility(endpoint, false); err != nil {
			logger.Warnw("Failed to re-hide endpoint during rollback", "endpoint", endpoint, "error", err)
			failures++
		}
	}

	for _, endpoint := range tx.snapshot.visible {
		if err := sc.policy.SetVisibility(endpoint, true); err != nil {
			logger.Warnw("Failed to re-show endpoint during rollback", "endpoint", endpoint, "error", err)
			failures++
		}
	}

	for _, role := range roles {
		endpoint, ok := tx.snapshot.defaultEndpoint(role)
		if !ok {
			continue
		}

		if err := sc.policy.SetDefault(endpoint); err != nil {
			logger.Warnw("Failed to restore default endpoint during rollback", "endpoint", endpoint, "error", err)
			failures++
		}
	}

	return failures
}

func (s *endpointSnapshot) ids() []string {
	ids := make([]string, 0, len(s.visible))
	for _, endpoint := range s.visible {
		ids = append(ids, endpoint.ID)
	}

	return ids
}

func (s *endpointSnapshot) defaultEndpoint(role Role) (EndpointRef, bool) {
	id := s.defaults[role]
	if id == "" {
		return EndpointRef{}, false
	}

	for _, endpoint := range s.visible {
		if endpoint.ID == id && endpoint.Role == role {
			return endpoint, true
		}
	}

	return EndpointRef{}, false
}
