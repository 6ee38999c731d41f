package command

import (
	"strings"

	"gofastdb/internal/protocol"
)

func registerGeneric(t *Table) {
	t.register(&Spec{Name: "DEL", Arity: -2, Keys: KeySpec{1, -1, 1}, Flags: FlagWrite, Handler: cmdDel})
	t.register(&Spec{Name: "EXISTS", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdExists})
	t.register(&Spec{Name: "TYPE", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdType})
	t.register(&Spec{Name: "KEYS", Arity: 2, Flags: FlagBulk, Handler: cmdKeys})
	t.register(&Spec{Name: "EXPIRE", Arity: 3, Keys: KeySpec{1, 1, 1}, Flags: FlagWrite, Handler: cmdExpire})
	t.register(&Spec{Name: "EXPIREAT", Arity: 3, Keys: KeySpec{1, 1, 1}, Flags: FlagWrite, Handler: cmdExpireAt})
	t.register(&Spec{Name: "TTL", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdTTL})
	t.register(&Spec{Name: "RENAME", Arity: 3, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 2, 1}, Handler: cmdRename})
}

func cmdDel(ctx *Context, argv [][]byte) Result {
	n := 0
	for _, k := range argv[1:] {
		if ctx.DB.Delete(string(k)) {
			n++
		}
	}
	return Result{Reply: protocol.Integer(int64(n)), Dirty: n}
}

func cmdExists(ctx *Context, argv [][]byte) Result {
	if ctx.DB.Exists(string(argv[1]), ctx.Now) {
		return reply(ctx.Shared.COne)
	}
	return reply(ctx.Shared.CZero)
}

func cmdType(ctx *Context, argv [][]byte) Result {
	obj, present := ctx.DB.Lookup(string(argv[1]), ctx.Now)
	if !present {
		return reply(protocol.Status("none"))
	}
	return reply(protocol.Status(obj.Type.String()))
}

// cmdKeys does no glob matching: the pattern "*" returns every key, and any
// other pattern returns only a key equal to it, compared case-insensitively.
func cmdKeys(ctx *Context, argv [][]byte) Result {
	pattern := string(argv[1])
	keys := ctx.DB.Keys(ctx.Now)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if pattern == "*" || strings.EqualFold(pattern, k) {
			out = append(out, []byte(k))
		}
	}
	return reply(protocol.MultiBulk(out))
}

func cmdExpire(ctx *Context, argv [][]byte) Result {
	secs, ok := parseInt(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	if !ctx.DB.ExpireAt(string(argv[1]), ctx.Now+secs, ctx.Now) {
		return reply(ctx.Shared.CZero)
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdExpireAt(ctx *Context, argv [][]byte) Result {
	at, ok := parseInt(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	if !ctx.DB.ExpireAt(string(argv[1]), at, ctx.Now) {
		return reply(ctx.Shared.CZero)
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdTTL(ctx *Context, argv [][]byte) Result {
	return reply(protocol.Integer(ctx.DB.TTL(string(argv[1]), ctx.Now)))
}

func cmdRename(ctx *Context, argv [][]byte) Result {
	src := string(argv[1])
	obj, present := ctx.DB.Lookup(src, ctx.Now)
	if !present {
		return reply(protocol.Error("ERR no such key"))
	}
	dst := string(argv[2])
	ttl := ctx.DB.TTL(src, ctx.Now)
	ctx.DB.Delete(src)
	if ttl >= 0 {
		ctx.DB.SetWithExpire(dst, obj, ctx.Now+ttl)
	} else {
		ctx.DB.Set(dst, obj)
	}
	return Result{Reply: ctx.Shared.OK, Dirty: 1}
}
