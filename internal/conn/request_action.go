package conn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chunkdb/chunkdb/pkg"
)

type RequestAction string

const (
	// query actions
	RequestActionCollect RequestAction = "collect"
	RequestActionCompute RequestAction = "compute"
	RequestActionExport  RequestAction = "export"

	// dataset actions
	RequestActionList     RequestAction = "listDatasets"
	RequestActionDescribe RequestAction = "describe"
	RequestActionRename   RequestAction = "renameColumn"
)

func (action RequestAction) IsReadOnly() bool {
	return action != RequestActionCompute && action != RequestActionRename
}

// ActionHandler dispatches one request. Read-only actions share the
// registry lock; compute and rename take it exclusively since they
// register new datasets or rewrite metadata.
func (s *Server) ActionHandler(ctx context.Context, action RequestAction, raw []byte) Response {
	var res Response
	if action.IsReadOnly() {
		pkg.RLockWrap(s, func() {
			res = s.dispatch(ctx, action, raw)
		})
	} else {
		pkg.LockWrap(s, func() {
			res = s.dispatch(ctx, action, raw)
		})
	}
	return res
}

func (s *Server) dispatch(ctx context.Context, action RequestAction, raw []byte) Response {
	switch action {
	case RequestActionList:
		return s.ListReqHandler()
	case RequestActionDescribe:
		return s.DescribeReqHandler(raw)
	case RequestActionRename:
		return s.RenameReqHandler(raw)
	case RequestActionCollect:
		return s.CollectReqHandler(ctx, raw)
	case RequestActionCompute:
		return s.ComputeReqHandler(ctx, raw)
	case RequestActionExport:
		return s.ExportReqHandler(ctx, raw)
	default:
		return NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("unknown action: %s", action))
	}
}
