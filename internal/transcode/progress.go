package transcode

// ProgressStatus mirrors spec §3.1's ProgressStatus entity and is encoded
// onto the wire unchanged by internal/session.
type ProgressStatus struct {
	Status        int // 0 running, 1 finished, -1 failed
	StatusDesc    string
	ProcTimeMs    int64
	TimeLeftMs    int64
	ProgressPct   int
	AudioPktsRead int64
	VideoPktsRead int64
	ErrMsg        string
}

const (
	StatusRunning  = 0
	StatusFinished = 1
	StatusFailed   = -1
)
