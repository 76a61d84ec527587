package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Server frames internal/dispatch's RPC surface over one websocket
// connection per session (spec.md §4.6 "Ordering... RPCs are strictly
// serialized within a session"): ServeHTTP reads one request, handles it
// to completion, writes the reply, then reads the next — there is no
// pipelining.
type Server struct {
	d      *dispatch.Dispatcher
	logger *slog.Logger
}

// NewServer returns a Server framing d's RPC surface.
func NewServer(d *dispatch.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{d: d, logger: logger}
}

// ServeHTTP upgrades the connection and serves framed RPCs until the
// client closes it or the request context is canceled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	for {
		var req Request

		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == -1 {
				s.logger.Debug("reading request failed", slog.String("error", err.Error()))
			}

			return
		}

		resp := s.handle(ctx, req)

		if err := wsjson.Write(ctx, conn, resp); err != nil {
			s.logger.Warn("writing response failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpSyncConfigure:
		return s.syncConfigure(req)
	case OpSyncImportMessageChange:
		return s.syncImportMessageChange(ctx, req)
	case OpSyncImportHierarchyChange:
		return s.syncImportHierarchyChange(ctx, req)
	case OpSyncImportDeletes:
		return s.syncImportDeletes(ctx, req)
	case OpSyncUploadStateStreamBegin:
		return s.syncUploadStateStreamBegin(req)
	case OpSyncUploadStateStreamContinue:
		return s.syncUploadStateStreamContinue(req)
	case OpSyncUploadStateStreamEnd:
		return s.syncUploadStateStreamEnd(req)
	case OpFastTransferSourceGetBuffer:
		return s.getBuffer(ctx, req)
	case OpGetLocalReplicaIds:
		return s.getLocalReplicaIds(ctx, req)
	default:
		return Response{Error: "transport: unknown op " + string(req.Op)}
	}
}

func (s *Server) syncConfigure(req Request) Response {
	props, err := decodeProps(req.Props)
	if err != nil {
		return errResponse(err)
	}
	_ = props // SyncConfigure carries requested property tags, not values

	h, err := s.d.SyncConfigure(store.Handle(req.Folder), session.Mode(req.Mode), req.Flags.toSession(), propTagsFromWire(req.Properties))
	if err != nil {
		return errResponse(err)
	}

	return Response{Handle: uint64(h)}
}

func (s *Server) syncImportMessageChange(ctx context.Context, req Request) Response {
	props, err := decodeProps(req.Props)
	if err != nil {
		return errResponse(err)
	}

	msgID, err := s.d.SyncImportMessageChange(ctx, dispatch.Handle(req.Handle), req.SourceKey, req.Associated, props)
	if err != nil {
		return errResponse(err)
	}

	return Response{MessageID: msgID}
}

func (s *Server) syncImportHierarchyChange(ctx context.Context, req Request) Response {
	props, err := decodeProps(req.Props)
	if err != nil {
		return errResponse(err)
	}

	folderID, err := s.d.SyncImportHierarchyChange(ctx, dispatch.Handle(req.Handle), req.ParentSourceKey, req.SourceKey, props)
	if err != nil {
		return errResponse(err)
	}

	return Response{MessageID: folderID}
}

func (s *Server) syncImportDeletes(ctx context.Context, req Request) Response {
	if err := s.d.SyncImportDeletes(ctx, dispatch.Handle(req.Handle), req.SourceKeys, req.Hard, req.Hierarchy); err != nil {
		return errResponse(err)
	}

	return Response{}
}

func (s *Server) syncUploadStateStreamBegin(req Request) Response {
	if err := s.d.SyncUploadStateStreamBegin(dispatch.Handle(req.Handle), propTagsFromWire([]uint32{req.Tag})[0]); err != nil {
		return errResponse(err)
	}

	return Response{}
}

func (s *Server) syncUploadStateStreamContinue(req Request) Response {
	if err := s.d.SyncUploadStateStreamContinue(dispatch.Handle(req.Handle), req.Data); err != nil {
		return errResponse(err)
	}

	return Response{}
}

func (s *Server) syncUploadStateStreamEnd(req Request) Response {
	if err := s.d.SyncUploadStateStreamEnd(dispatch.Handle(req.Handle)); err != nil {
		return errResponse(err)
	}

	return Response{}
}

func (s *Server) getBuffer(ctx context.Context, req Request) Response {
	chunk, total, inProgress, status, err := s.d.FastTransferSourceGetBuffer(ctx, dispatch.Handle(req.Handle), req.BufferSize)
	if err != nil {
		return errResponse(err)
	}

	return Response{Chunk: chunk, Total: total, InProgress: inProgress, Status: status.String()}
}

func (s *Server) getLocalReplicaIds(ctx context.Context, req Request) Response {
	guid, gc, err := s.d.GetLocalReplicaIds(ctx, dispatch.Handle(req.Handle), req.Count)
	if err != nil {
		return errResponse(err)
	}

	return Response{GUID: guid[:], GC: gc[:]}
}

func decodeProps(wire []PropWire) ([]store.PropValue, error) {
	props := make([]store.PropValue, len(wire))

	for i, w := range wire {
		pv, err := wireToPropValue(w)
		if err != nil {
			return nil, err
		}

		props[i] = pv
	}

	return props, nil
}

func errResponse(err error) Response {
	return Response{Error: protoerr.Classify(err).String() + ": " + err.Error()}
}
