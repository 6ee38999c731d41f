package command

// registerTransactions wires MULTI/DISCARD's trivial reply shape; EXEC is
// registered only so arity/unknown-command checks treat it normally; its
// actual replay of the queued command list is performed by internal/engine,
// which owns the per-client command queue and is the only place that can
// produce EXEC's single combined multi-bulk reply.
func registerTransactions(t *Table) {
	t.register(&Spec{Name: "MULTI", Arity: 1, Handler: cmdMulti})
	t.register(&Spec{Name: "DISCARD", Arity: 1, Handler: cmdDiscard})
	t.register(&Spec{Name: "EXEC", Arity: 1, Handler: cmdExecStub})
}

func cmdMulti(ctx *Context, argv [][]byte) Result {
	return Result{Reply: ctx.Shared.OK, StartMulti: true}
}

func cmdDiscard(ctx *Context, argv [][]byte) Result {
	return Result{Reply: ctx.Shared.OK, EndMulti: true}
}

// cmdExecStub is never actually invoked: the engine intercepts "EXEC"
// before calling Table.Dispatch, since replaying the queue requires
// re-entering Dispatch once per queued command.
func cmdExecStub(ctx *Context, argv [][]byte) Result {
	return Result{EndMulti: true}
}
