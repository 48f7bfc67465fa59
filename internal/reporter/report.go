package reporter

import (
	"net/url"
	"strconv"
	"time"
)

// Query parameter names understood by the controller.
const (
	ParamPodname     = "podname"
	ParamTimestamp   = "k"
	ParamOutstanding = "a"
)

// Report is one heartbeat. It only lives for the duration of a send.
type Report struct {
	NodeIdentity     string
	Timestamp        int64
	OutstandingCount int64
}

// NewReport stamps a report with now in unix seconds. Negative counts are
// reported as zero.
func NewReport(identity string, now time.Time, outstanding int64) Report {
	if outstanding < 0 {
		outstanding = 0
	}
	return Report{
		NodeIdentity:     identity,
		Timestamp:        now.Unix(),
		OutstandingCount: outstanding,
	}
}

// Values encodes the report as controller query parameters.
func (r Report) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPodname, r.NodeIdentity)
	v.Set(ParamTimestamp, strconv.FormatInt(r.Timestamp, 10))
	v.Set(ParamOutstanding, strconv.FormatInt(r.OutstandingCount, 10))
	return v
}
