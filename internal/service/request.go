package service

import (
	"github.com/deskstream/deskstream/internal/handler"
	"github.com/deskstream/deskstream/internal/netconn"
)

// Request is the client-side counterpart of Service (§4.8): it has no
// worker thread of its own — its "driver" is the network callbacks
// themselves — but registers its message/error handlers on construction
// and deregisters them on Close, mirroring a Service's attach/detach to a
// session's connections.
type Request struct {
	msgConn  *netconn.MsgConn
	dataConn *netconn.DataConn

	msgHandlerIDs []int
	errHandlerIDs []int
}

// NewRequest wraps the pair of connections a request drives.
func NewRequest(msgConn *netconn.MsgConn, dataConn *netconn.DataConn) *Request {
	return &Request{msgConn: msgConn, dataConn: dataConn}
}

// MsgConn returns the control channel.
func (r *Request) MsgConn() *netconn.MsgConn { return r.msgConn }

// DataConn returns the bulk data channel.
func (r *Request) DataConn() *netconn.DataConn { return r.dataConn }

// OnMsg registers fn as a message handler on the control channel, tracked
// for automatic deregistration in Close.
func (r *Request) OnMsg(id int, fn handler.MsgFunc) {
	r.msgConn.AddMsgHandler(id, fn)
	r.msgHandlerIDs = append(r.msgHandlerIDs, id)
}

// OnError registers fn as an error handler on both channels, tracked for
// automatic deregistration in Close.
func (r *Request) OnError(id int, fn handler.ErrFunc) {
	r.msgConn.AddErrorHandler(id, fn)
	r.dataConn.AddErrorHandler(id, fn)
	r.errHandlerIDs = append(r.errHandlerIDs, id)
}

// Close deregisters every handler this request installed. It does not
// close the underlying connections — the session owns their lifetime.
func (r *Request) Close() {
	for _, id := range r.msgHandlerIDs {
		r.msgConn.RemoveMsgHandler(id)
	}
	for _, id := range r.errHandlerIDs {
		r.msgConn.RemoveErrorHandler(id)
		r.dataConn.RemoveErrorHandler(id)
	}
	r.msgHandlerIDs = nil
	r.errHandlerIDs = nil
}
