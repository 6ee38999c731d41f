package command

import (
	"strconv"

	"gofastdb/internal/dynstr"
	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
)

func registerStrings(t *Table) {
	t.register(&Spec{Name: "SET", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSet})
	t.register(&Spec{Name: "SETEX", Arity: 4, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSetEx})
	t.register(&Spec{Name: "SETNX", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSetNX})
	t.register(&Spec{Name: "GET", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdGet})
	t.register(&Spec{Name: "GETSET", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdGetSet})
	t.register(&Spec{Name: "APPEND", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdAppend})
	t.register(&Spec{Name: "SUBSTR", Arity: 4, Keys: KeySpec{1, 1, 1}, Handler: cmdSubstr})
	t.register(&Spec{Name: "GETRANGE", Arity: 4, Keys: KeySpec{1, 1, 1}, Handler: cmdSubstr})
	t.register(&Spec{Name: "STRLEN", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdStrlen})
	t.register(&Spec{Name: "INCR", Arity: 2, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdIncr})
	t.register(&Spec{Name: "DECR", Arity: 2, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdDecr})
	t.register(&Spec{Name: "INCRBY", Arity: 3, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdIncrBy})
	t.register(&Spec{Name: "DECRBY", Arity: 3, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdDecrBy})
}

func cmdSet(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	ctx.DB.Set(key, value.NewString(argv[2]))
	return Result{Reply: ctx.Shared.OK, Dirty: 1}
}

func cmdSetEx(ctx *Context, argv [][]byte) Result {
	seconds, ok := parseInt(argv[2])
	if !ok || seconds <= 0 {
		return reply(protocol.Error("ERR invalid expire time in SETEX"))
	}
	key := string(argv[1])
	ctx.DB.SetWithExpire(key, value.NewString(argv[3]), ctx.Now+seconds)
	return Result{Reply: ctx.Shared.OK, Dirty: 1}
}

func cmdSetNX(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	if ctx.DB.Exists(key, ctx.Now) {
		return Result{Reply: ctx.Shared.CZero}
	}
	ctx.DB.Set(key, value.NewString(argv[2]))
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdGet(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeString)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Bulk(obj.Bytes()))
}

func cmdGetSet(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	old, present := ctx.DB.Lookup(key, ctx.Now)
	var oldReply []byte
	if present && old.Type == value.TypeString {
		oldReply = protocol.Bulk(old.Bytes())
	} else if present {
		return wrongType()
	} else {
		oldReply = ctx.Shared.NilBulk
	}
	ctx.DB.Set(key, value.NewString(argv[2]))
	return Result{Reply: oldReply, Dirty: 1}
}

func cmdAppend(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		ctx.DB.Set(key, value.NewString(argv[2]))
		return Result{Reply: protocol.Integer(int64(len(argv[2]))), Dirty: 1}
	}
	if obj.Type != value.TypeString {
		return wrongType()
	}
	obj = obj.EnsureUnshared()
	obj.Raw = dynstr.New(obj.Raw).Append(argv[2])
	obj.Encoding = value.EncRaw
	ctx.DB.Set(key, obj)
	return Result{Reply: protocol.Integer(int64(len(obj.Raw))), Dirty: 1}
}

func cmdSubstr(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeString)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	start, ok1 := parseInt(argv[2])
	end, ok2 := parseInt(argv[3])
	if !ok1 || !ok2 {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	sub, ok := dynstr.New(obj.Bytes()).Sub(int(start), int(end))
	if !ok {
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Bulk(sub))
}

func cmdStrlen(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeString)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	return reply(protocol.Integer(int64(len(obj.Bytes()))))
}

func incrDecr(ctx *Context, key string, delta int64) Result {
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	var cur int64
	if present {
		if obj.Type != value.TypeString {
			return wrongType()
		}
		n, ok := parseInt(obj.Bytes())
		if !ok {
			return reply(protocol.Error("ERR value is not an integer or out of range"))
		}
		cur = n
	}
	cur += delta
	ctx.DB.Set(key, value.NewString([]byte(strconv.FormatInt(cur, 10))))
	return Result{Reply: protocol.Integer(cur), Dirty: 1}
}

func cmdIncr(ctx *Context, argv [][]byte) Result   { return incrDecr(ctx, string(argv[1]), 1) }
func cmdDecr(ctx *Context, argv [][]byte) Result   { return incrDecr(ctx, string(argv[1]), -1) }

func cmdIncrBy(ctx *Context, argv [][]byte) Result {
	n, ok := parseInt(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	return incrDecr(ctx, string(argv[1]), n)
}

func cmdDecrBy(ctx *Context, argv [][]byte) Result {
	n, ok := parseInt(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	return incrDecr(ctx, string(argv[1]), -n)
}
