package journal

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		// timeout
		{
			name:     "context deadline exceeded",
			errMsg:   "context deadline exceeded",
			wantKind: ErrTimeout,
		},
		{
			name:     "operation timed out",
			errMsg:   "operation timed out",
			wantKind: ErrTimeout,
		},
		{
			name:     "timeout in message",
			errMsg:   "connection timeout after 30s",
			wantKind: ErrTimeout,
		},

		// access denied (checked before permission denied)
		{
			name:     "AccessDenied response",
			errMsg:   "AccessDenied: you do not have access",
			wantKind: ErrAccessDenied,
		},
		{
			name:     "Forbidden response",
			errMsg:   "Forbidden",
			wantKind: ErrAccessDenied,
		},
		{
			name:     "HTTP 403",
			errMsg:   "received status 403",
			wantKind: ErrAccessDenied,
		},

		// permission denied
		{
			name:     "permission denied",
			errMsg:   "permission denied for /var/lib/adit",
			wantKind: ErrPermissionDenied,
		},
		{
			name:     "EACCES errno",
			errMsg:   "open /var/lib/adit/messages.jsonl: EACCES",
			wantKind: ErrPermissionDenied,
		},

		// disk full
		{
			name:     "no space left on device",
			errMsg:   "write /var/lib/adit/messages.jsonl: no space left on device",
			wantKind: ErrDiskFull,
		},
		{
			name:     "ENOSPC errno",
			errMsg:   "ENOSPC: write failed",
			wantKind: ErrDiskFull,
		},
		{
			name:     "quota exceeded",
			errMsg:   "quota exceeded for user",
			wantKind: ErrDiskFull,
		},

		// not found
		{
			name:     "no such file",
			errMsg:   "no such file or directory",
			wantKind: ErrNotFound,
		},
		{
			name:     "NoSuchKey S3",
			errMsg:   "NoSuchKey: The specified key does not exist",
			wantKind: ErrNotFound,
		},
		{
			name:     "HTTP 404",
			errMsg:   "received status 404",
			wantKind: ErrNotFound,
		},

		// rate limited
		{
			name:     "HTTP 429",
			errMsg:   "received status 429",
			wantKind: ErrThrottled,
		},
		{
			name:     "SlowDown S3",
			errMsg:   "SlowDown: please reduce request rate",
			wantKind: ErrThrottled,
		},
		{
			name:     "throttled message",
			errMsg:   "request was throttled",
			wantKind: ErrThrottled,
		},

		// auth
		{
			name:     "NoCredentialProviders",
			errMsg:   "NoCredentialProviders: no valid credential providers",
			wantKind: ErrAuth,
		},
		{
			name:     "ExpiredToken",
			errMsg:   "ExpiredToken: the security token has expired",
			wantKind: ErrAuth,
		},
		{
			name:     "HTTP 401",
			errMsg:   "received status 401",
			wantKind: ErrAuth,
		},

		// network
		{
			name:     "connection refused",
			errMsg:   "dial tcp 127.0.0.1:9000: connection refused",
			wantKind: ErrNetwork,
		},
		{
			name:     "no route to host",
			errMsg:   "no route to host",
			wantKind: ErrNetwork,
		},
		{
			name:     "network unreachable",
			errMsg:   "connect: network unreachable",
			wantKind: ErrNetwork,
		},

		// unknown (fallback)
		{
			name:   "unrecognized error",
			errMsg: "something completely unexpected happened",
			// classifyError returns a new errors.New("storage error") for unknown
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.errMsg)
			got := classifyError(err)

			if tt.wantKind != nil {
				if !errors.Is(got, tt.wantKind) {
					t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
				}
			} else {
				// Fallback: should return an error with "storage error" message
				if got == nil {
					t.Errorf("classifyError(%q) = nil, want non-nil fallback", tt.errMsg)
				} else if got.Error() != "storage error" {
					t.Errorf("classifyError(%q) = %q, want %q", tt.errMsg, got.Error(), "storage error")
				}
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

func TestClassifyError_TypedTimeout(t *testing.T) {
	// A Timeout() error classifies as timeout regardless of its message.
	err := &timeoutError{msg: "something went sideways"}
	if got := classifyError(err); !errors.Is(got, ErrTimeout) {
		t.Errorf("classifyError(timeoutError) = %v, want ErrTimeout", got)
	}
}

func TestStorageError_ErrorFormat(t *testing.T) {
	withPath := NewStorageError(ErrDiskFull, "write", "adit/messages", errors.New("ENOSPC"))
	if got := withPath.Error(); got != "write adit/messages: no space left on device: ENOSPC" {
		t.Errorf("Error() = %q", got)
	}

	withoutPath := NewStorageError(ErrAuth, "init", "", errors.New("ExpiredToken"))
	if got := withoutPath.Error(); got != "init: authentication failed: ExpiredToken" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapErrors_NilPassthrough(t *testing.T) {
	if err := WrapWriteError(nil, "adit/messages"); err != nil {
		t.Errorf("WrapWriteError(nil) = %v, want nil", err)
	}
	if err := WrapReadError(nil, "adit/snapshots"); err != nil {
		t.Errorf("WrapReadError(nil) = %v, want nil", err)
	}
	if err := WrapInitError(nil, "adit"); err != nil {
		t.Errorf("WrapInitError(nil) = %v, want nil", err)
	}
}
