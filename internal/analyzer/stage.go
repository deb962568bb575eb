package analyzer

// Stage is a progress milestone of ProduceAnalysis. Stages carry no meaning
// beyond reporting progress.
type Stage int

const (
	StagePrepared Stage = iota + 1
	StageEngagementComputed
	StageRemoteStarted
	StageRemoteCompleted
)

func (s Stage) String() string {
	switch s {
	case StagePrepared:
		return "prepared"
	case StageEngagementComputed:
		return "engagement_computed"
	case StageRemoteStarted:
		return "remote_started"
	case StageRemoteCompleted:
		return "remote_completed"
	default:
		return "unknown"
	}
}
