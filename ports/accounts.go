package ports

import (
	"context"
	"time"
)

// AccountRecorder keeps the wallet account table in sync with logins
type AccountRecorder interface {
	RecordLogin(ctx context.Context, address string, at time.Time) error
}
