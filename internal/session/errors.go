package session

import "errors"

// ErrPermissionDenied is returned by Start when microphone access is not
// granted. The phase does not change; the user can retry after granting
// access in browser or system settings.
var ErrPermissionDenied = errors.New("microphone permission not granted")
