package main

import "github.com/rs/zerolog"

// loggerService is the well-known sink every system message (SIGHUP
// notifications, bootstrap failures drained by hand) is routed to. It is
// bound to loggerName at startup; every delivery resolves the handle
// fresh via Registry.FindName rather than assuming a fixed handle
// (spec.md §4.3, §6 handle_findname).
type loggerService struct {
	log zerolog.Logger
}

func newLoggerService(log zerolog.Logger) ServiceConstructor {
	return func(args string) (Service, error) {
		return &loggerService{log: component(log, roleLogger)}, nil
	}
}

func (s *loggerService) Handle(ctx *Context, msg Message) {
	s.log.Info().
		Uint32("from", msg.Source).
		Int("session", msg.Session).
		Str("type", messageTypeName(msg.Type)).
		Bytes("data", msg.Data).
		Msg("logger")
}

func messageTypeName(t MessageType) string {
	switch t {
	case MessageSystem:
		return "system"
	case MessageSocket:
		return "socket"
	default:
		return "normal"
	}
}

// echoService is the default bootstrap target: it replies to every
// message it receives by pushing the same payload back to the sender.
// Useful as a smoke-test service and as the subject of the dispatch
// property tests (spec.md §7 properties 1-4).
type echoService struct{}

func newEchoService(string) (Service, error) {
	return &echoService{}, nil
}

func (s *echoService) Handle(ctx *Context, msg Message) {
	if msg.Source == 0 {
		return
	}
	_ = ctx.reg.Push(msg.Source, Message{
		Source:  ctx.Handle,
		Session: msg.Session,
		Type:    MessageNormal,
		Data:    msg.Data,
	})
}
