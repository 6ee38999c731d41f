package command

import (
	"bytes"

	"gofastdb/internal/database"
	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
)

func registerLists(t *Table) {
	t.register(&Spec{Name: "RPUSH", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdRPush})
	t.register(&Spec{Name: "LPUSH", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdLPush})
	t.register(&Spec{Name: "LLEN", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdLLen})
	t.register(&Spec{Name: "LRANGE", Arity: 4, Keys: KeySpec{1, 1, 1}, Handler: cmdLRange})
	t.register(&Spec{Name: "LINDEX", Arity: 3, Keys: KeySpec{1, 1, 1}, Handler: cmdLIndex})
	t.register(&Spec{Name: "LSET", Arity: 4, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdLSet})
	t.register(&Spec{Name: "LREM", Arity: 4, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdLRem})
	t.register(&Spec{Name: "LPOP", Arity: 2, Flags: FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdLPop})
	t.register(&Spec{Name: "RPOP", Arity: 2, Flags: FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdRPop})
	t.register(&Spec{Name: "BLPOP", Arity: -3, Handler: cmdBLPop})
	t.register(&Spec{Name: "BRPOP", Arity: -3, Handler: cmdBRPop})
}

func pushList(ctx *Context, key string, val []byte, left bool) Result {
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		obj = value.NewList()
		ctx.DB.Set(key, obj)
	} else if obj.Type != value.TypeList {
		return wrongType()
	}

	// Direct handoff to the oldest BLPOP/BRPOP waiter: the
	// pushed element bypasses the list entirely when a waiter exists.
	if w := ctx.DB.PopListWaiter(key); w != nil {
		w.Delivered <- database.BlockedPop{Key: key, Value: val}
		return Result{Reply: protocol.Integer(int64(obj.List.Length())), Dirty: 1}
	}

	var n int
	if left {
		n = obj.List.LeftPush(val)
	} else {
		n = obj.List.RightPush(val)
	}
	return Result{Reply: protocol.Integer(int64(n)), Dirty: 1}
}

func cmdRPush(ctx *Context, argv [][]byte) Result { return pushList(ctx, string(argv[1]), argv[2], false) }
func cmdLPush(ctx *Context, argv [][]byte) Result { return pushList(ctx, string(argv[1]), argv[2], true) }

func cmdLLen(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	return reply(protocol.Integer(int64(obj.List.Length())))
}

func cmdLRange(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	start, ok1 := parseInt(argv[2])
	end, ok2 := parseInt(argv[3])
	if !ok1 || !ok2 {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	elems := obj.List.Range(int(start), int(end))
	return reply(protocol.MultiBulk(elems))
}

func cmdLIndex(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	idx, ok1 := parseInt(argv[2])
	if !ok1 {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	v, found := obj.List.Index(int(idx))
	if !found {
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Bulk(v))
}

func cmdLSet(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(protocol.Error("ERR no such key"))
	}
	idx, ok1 := parseInt(argv[2])
	if !ok1 {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	if !obj.List.SetAt(int(idx), argv[3]) {
		return reply(protocol.Error("ERR index out of range"))
	}
	return Result{Reply: ctx.Shared.OK, Dirty: 1}
}

func cmdLRem(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	count, ok1 := parseInt(argv[2])
	if !ok1 {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	target := argv[3]
	removed := obj.List.RemoveMatching(func(v []byte) bool { return bytes.Equal(v, target) }, int(count))
	if obj.List.Length() == 0 {
		ctx.DB.Delete(string(argv[1]))
	}
	return Result{Reply: protocol.Integer(int64(removed)), Dirty: removed}
}

func popList(ctx *Context, key string, left bool) Result {
	obj, res, ok := lookupTyped(ctx, key, value.TypeList)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	var v []byte
	var found bool
	if left {
		v, found = obj.List.LeftPop()
	} else {
		v, found = obj.List.RightPop()
	}
	if !found {
		return reply(ctx.Shared.NilBulk)
	}
	if obj.List.Length() == 0 {
		ctx.DB.Delete(key)
	}
	return Result{Reply: protocol.Bulk(v), Dirty: 1}
}

func cmdLPop(ctx *Context, argv [][]byte) Result { return popList(ctx, string(argv[1]), true) }
func cmdRPop(ctx *Context, argv [][]byte) Result { return popList(ctx, string(argv[1]), false) }

func blockingPop(ctx *Context, argv [][]byte, left bool) Result {
	keys := argv[1 : len(argv)-1]
	timeoutArg := argv[len(argv)-1]
	secs, ok := parseInt(timeoutArg)
	if !ok || secs < 0 {
		return reply(protocol.Error("ERR timeout is not an integer or out of range"))
	}

	for _, k := range keys {
		key := string(k)
		obj, present := ctx.DB.Lookup(key, ctx.Now)
		if !present || obj.Type != value.TypeList || obj.List.Length() == 0 {
			continue
		}
		var v []byte
		if left {
			v, _ = obj.List.LeftPop()
		} else {
			v, _ = obj.List.RightPop()
		}
		if obj.List.Length() == 0 {
			ctx.DB.Delete(key)
		}
		return Result{Reply: protocol.MultiBulk([][]byte{k, v}), Dirty: 1}
	}

	deadline := int64(0)
	if secs > 0 {
		deadline = ctx.Now + secs
	}
	keyStrs := make([]string, len(keys))
	for i, k := range keys {
		keyStrs[i] = string(k)
	}
	return Result{Pending: &Pending{Keys: keyStrs, Deadline: deadline, PopLeft: left}}
}

func cmdBLPop(ctx *Context, argv [][]byte) Result { return blockingPop(ctx, argv, true) }
func cmdBRPop(ctx *Context, argv [][]byte) Result { return blockingPop(ctx, argv, false) }
