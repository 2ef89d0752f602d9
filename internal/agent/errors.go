package agent

import "errors"

// ErrStalled is wrapped into the error Chat returns when the scheduler
// reached quiescence without the root task reaching COMPLETED — a
// dependency chain stalled on a FAILED or CANCELED ancestor. Chat names the
// offending task IDs in the wrapping message; callers that only need to
// detect the condition should use errors.Is against this sentinel.
var ErrStalled = errors.New("agent: request stalled before completion")
