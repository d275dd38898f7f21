package model

// DeploymentStatus is the coarse status reported on a deployment record.
type DeploymentStatus string

// Deployment status constants.
const (
	DeploymentAwaitingDatabase DeploymentStatus = "AWAITING_DATABASE"
	DeploymentReady            DeploymentStatus = "READY"
	DeploymentUnused           DeploymentStatus = "UNUSED"
	DeploymentAwaitingDelete   DeploymentStatus = "AWAITING_DELETE"
	DeploymentUnknown          DeploymentStatus = "UNKNOWN"
)

// RevisionStatus is the build/deploy stage of a single revision.
type RevisionStatus string

// Revision status constants, in the order a successful revision walks through them.
const (
	RevisionCreating       RevisionStatus = "CREATING"
	RevisionQueued         RevisionStatus = "QUEUED"
	RevisionAwaitingBuild  RevisionStatus = "AWAITING_BUILD"
	RevisionBuilding       RevisionStatus = "BUILDING"
	RevisionAwaitingDeploy RevisionStatus = "AWAITING_DEPLOY"
	RevisionDeploying      RevisionStatus = "DEPLOYING"
	RevisionDeployed       RevisionStatus = "DEPLOYED"
)

// Terminal revision statuses other than DEPLOYED.
const (
	RevisionCreateFailed RevisionStatus = "CREATE_FAILED"
	RevisionBuildFailed  RevisionStatus = "BUILD_FAILED"
	RevisionDeployFailed RevisionStatus = "DEPLOY_FAILED"
	RevisionSkipped      RevisionStatus = "SKIPPED"
	RevisionInterrupted  RevisionStatus = "INTERRUPTED"
	RevisionUnknown      RevisionStatus = "UNKNOWN"
)

var revisionRank = map[RevisionStatus]int{
	RevisionCreating:       0,
	RevisionQueued:         1,
	RevisionAwaitingBuild:  2,
	RevisionBuilding:       3,
	RevisionAwaitingDeploy: 4,
	RevisionDeploying:      5,
	RevisionDeployed:       6,
}

// Rank returns the position of s on the success path and false when s is not
// on it (failure states and unrecognised values).
func (s RevisionStatus) Rank() (int, bool) {
	r, ok := revisionRank[s]
	return r, ok
}

// IsFailure reports whether s is a terminal state reported by the platform
// that will never reach DEPLOYED.
func (s RevisionStatus) IsFailure() bool {
	switch s {
	case RevisionCreateFailed, RevisionBuildFailed, RevisionDeployFailed,
		RevisionSkipped, RevisionInterrupted, RevisionUnknown:
		return true
	}
	return false
}

// IsStageFailure reports whether s names a failed build/deploy stage, as
// opposed to SKIPPED, INTERRUPTED or UNKNOWN.
func (s RevisionStatus) IsStageFailure() bool {
	switch s {
	case RevisionCreateFailed, RevisionBuildFailed, RevisionDeployFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are expected from s.
func (s RevisionStatus) IsTerminal() bool {
	return s == RevisionDeployed || s.IsFailure()
}

// IsKnown reports whether s is one of the documented revision statuses.
func (s RevisionStatus) IsKnown() bool {
	_, ok := revisionRank[s]
	return ok || s.IsFailure()
}
