package internal

import (
	"context"

	"go.elastic.co/apm"
)

// CaptureError reports err to Elastic APM for the transaction in ctx
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	apm.CaptureError(ctx, err).Send()
}
