// Package api
// Author: momentics@gmail.com
//
// Transfer completion status.

package api

// Status is the non-blocking completion state of a posted transfer.
type Status int

const (
    Pending Status = iota
    CompleteSuccess
)

func (s Status) String() string {
    switch s {
    case CompleteSuccess:
        return "complete"
    default:
        return "pending"
    }
}
