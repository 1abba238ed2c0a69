package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/protocol"
)

// PermissionQuerier asks a platform responder for one permission over a NATS
// request. The responder may hold the reply until the user answers a prompt.
type PermissionQuerier struct {
	client  *Client
	subject string
	kind    permission.Kind
}

func NewPermissionQuerier(client *Client, subject string, kind permission.Kind) *PermissionQuerier {
	return &PermissionQuerier{client: client, subject: subject, kind: kind}
}

func (q *PermissionQuerier) Query(ctx context.Context) (permission.State, error) {
	var reply protocol.PermissionReply
	req := protocol.PermissionQuery{Kind: q.kind.String()}
	if err := q.client.RequestJSON(ctx, q.subject, req, &reply); err != nil {
		return permission.StateUndetermined, err
	}
	if reply.Error != "" {
		return permission.StateUndetermined, fmt.Errorf("%s permission responder: %w", q.kind, errors.New(reply.Error))
	}
	return permission.ParseState(reply.Status), nil
}
