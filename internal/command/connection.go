package command

import "gofastdb/internal/protocol"

func registerConnection(t *Table) {
	t.register(&Spec{Name: "PING", Arity: -1, Handler: cmdPing})
	t.register(&Spec{Name: "ECHO", Arity: 2, Flags: FlagBulk, Handler: cmdEcho})
	t.register(&Spec{Name: "AUTH", Arity: 2, Flags: FlagBulk, Handler: cmdAuth})
	t.register(&Spec{Name: "SELECT", Arity: 2, Handler: cmdSelect})
	t.register(&Spec{Name: "QUIT", Arity: -1, Handler: cmdQuit})
}

func cmdPing(ctx *Context, argv [][]byte) Result {
	if len(argv) > 1 {
		return reply(protocol.Bulk(argv[1]))
	}
	return reply(ctx.Shared.PONG)
}

func cmdEcho(ctx *Context, argv [][]byte) Result {
	return reply(protocol.Bulk(argv[1]))
}

// cmdAuth is handled mostly by the engine (which tracks Authenticated on
// the live client, not on a per-call Context); this handler only validates
// shape so AUTH participates normally in the dispatch table.
func cmdAuth(ctx *Context, argv [][]byte) Result {
	return reply(ctx.Shared.OK)
}

func cmdSelect(ctx *Context, argv [][]byte) Result {
	n, ok := parseInt(argv[1])
	if !ok || n < 0 || n >= int64(len(ctx.Server.DBs)) {
		return reply(protocol.Error("ERR invalid DB index"))
	}
	return Result{Reply: ctx.Shared.OK, SwitchDB: int(n), SwitchDBSet: true}
}

func cmdQuit(ctx *Context, argv [][]byte) Result {
	return Result{Reply: ctx.Shared.OK, Close: true}
}
