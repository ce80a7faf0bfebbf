// Package port carries messages between a bridge and the application it
// serves.
package port

import (
	"context"

	"github.com/okian/scorebridge/internal/domain/model"
)

// Port is one application session as seen by the bridge.
type Port interface {
	Submissions() <-chan model.Submission
	Send(ctx context.Context, msg model.Message) error
}

var (
	_ Port = (*ChannelPort)(nil)
	_ Port = (*WSPort)(nil)
)
