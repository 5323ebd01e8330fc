package consensus

import "errors"

// ErrUnknownMessage tags the UnknownMessage category from spec.md 7 for
// log events - a role's HandleMessage default arm silently ignores a
// message type it has no case for, so this sentinel exists for log-site
// tagging only, never as a Go error return.
var ErrUnknownMessage = errors.New("no handler for this message type in the current role")

// ErrLeaderUnknown signals a client redirect attempted with no leader
// recognized yet. Per spec.md 7 (NotLeader) this is unrecoverable: the
// replica has nowhere to point the client, so the event loop treats it as
// fatal rather than silently dropping the request.
var ErrLeaderUnknown = errors.New("cannot redirect: no leader currently recognized")

// ErrProtocolRejection tags the ProtocolRejection category from spec.md
// 7 (stale term, log gap, term mismatch) for log events - these surface
// to the wire as a negative append_response or a silent drop, never as a
// Go error return, so this sentinel exists for log-site tagging only.
var ErrProtocolRejection = errors.New("protocol rejection: stale term, log gap, or term mismatch")

// ErrClientMiss tags the ClientMiss category from spec.md 7 (get for an
// absent key). Surfaces to the wire as a fail response.
var ErrClientMiss = errors.New("client miss: key not present")
