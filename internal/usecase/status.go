package usecase

const (
	PhasePending   = "pending"
	PhasePreparing = "preparing"
	PhaseBuilding  = "building"
	PhaseDone      = "done"
	PhaseCancelled = "cancelled"
	PhaseFailed    = "failed"
)

// BuildStatus is what the status server reports about a running build.
type BuildStatus struct {
	Phase    string           `json:"phase"`
	Progress ProgressSnapshot `json:"progress"`
	Report   *ReportSnapshot  `json:"report,omitempty"`
	Error    string           `json:"error,omitempty"`
}
