package server

import (
	"context"
	"log/slog"

	"github.com/viant/darkhold"
	"github.com/viant/darkhold/appserver"
	"github.com/viant/darkhold/hub"
	"github.com/viant/darkhold/interaction"
)

// gateway receives server-initiated child traffic and feeds the browser
// surface: interaction requests into the broker, everything thread-scoped
// into the hub.
type gateway struct {
	hub    *hub.Hub
	broker *interaction.Broker
	logger *slog.Logger

	// manager is assigned right after construction; sessions only spawn later.
	manager *appserver.Manager
}

func (g *gateway) OnRequest(ctx context.Context, session *appserver.Session, frame *darkhold.Frame) {
	threadId := g.attributeThread(session, frame)
	if threadId == "" {
		g.logger.Debug("dropping interaction without a thread", "session", session.Id(), "method", frame.Method)
		return
	}
	g.manager.Bind(threadId, session)
	requestId := frame.RequestId()
	g.broker.Register(threadId, requestId, &interaction.Record{
		SessionId:  session.Id(),
		UpstreamId: *frame.Id,
		Method:     frame.Method,
		Params:     frame.Params,
	})
	payload, err := darkhold.NewInteractionRequestEvent(threadId, requestId, frame.Method, frame.Params)
	if err != nil {
		g.logger.Error("failed to render interaction event", "thread", threadId, "error", err)
		return
	}
	g.hub.Publish(ctx, threadId, string(payload))
}

// OnNotification republishes the child's notification line verbatim on its
// thread's event stream.
func (g *gateway) OnNotification(ctx context.Context, session *appserver.Session, frame *darkhold.Frame) {
	threadId := g.attributeThread(session, frame)
	if threadId == "" {
		g.logger.Debug("dropping notification without a thread", "session", session.Id(), "method", frame.Method)
		return
	}
	g.manager.Bind(threadId, session)
	g.hub.Publish(ctx, threadId, string(frame.Raw))
}

func (g *gateway) OnExit(session *appserver.Session, err error) {
	if purged := g.broker.PurgeSession(session.Id()); purged > 0 {
		g.logger.Info("purged pending interactions", "session", session.Id(), "count", purged)
	}
}

// attributeThread resolves the thread a frame belongs to: the explicit
// params.threadId, else the session's only bound thread.
func (g *gateway) attributeThread(session *appserver.Session, frame *darkhold.Frame) string {
	if threadId := frame.ThreadId(); threadId != "" {
		return threadId
	}
	return session.SoleThread()
}
