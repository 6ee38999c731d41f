package command

import (
	"strconv"

	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
)

func registerHashes(t *Table) {
	t.register(&Spec{Name: "HSET", Arity: 4, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdHSet})
	t.register(&Spec{Name: "HGET", Arity: 3, Flags: FlagBulk, Keys: KeySpec{1, 1, 1}, Handler: cmdHGet})
	t.register(&Spec{Name: "HDEL", Arity: 3, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdHDel})
	t.register(&Spec{Name: "HEXISTS", Arity: 3, Flags: FlagBulk, Keys: KeySpec{1, 1, 1}, Handler: cmdHExists})
	t.register(&Spec{Name: "HLEN", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdHLen})
	t.register(&Spec{Name: "HGETALL", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdHGetAll})
	t.register(&Spec{Name: "HKEYS", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdHKeys})
	t.register(&Spec{Name: "HVALS", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdHVals})
	t.register(&Spec{Name: "HINCRBY", Arity: 4, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdHIncrBy})
}

func hashObj(ctx *Context, key string, createIfMissing bool) (*value.Object, Result, bool) {
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		if !createIfMissing {
			return nil, Result{}, false
		}
		obj = value.NewHash(ctx.Server.HashMaxZipmapEntries, ctx.Server.HashMaxZipmapValue)
		ctx.DB.Set(key, obj)
		return obj, Result{}, true
	}
	if obj.Type != value.TypeHash {
		return nil, wrongType(), false
	}
	return obj, Result{}, true
}

// cmdHSet promotes the packed map to a hash table before insertion on the
// first oversize field or entry-count overflow.
func cmdHSet(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), true)
	if !ok {
		return res
	}
	isNew := !obj.Hash.Exists(argv[2])
	obj.Hash.Set(argv[2], argv[3])
	if isNew {
		return Result{Reply: ctx.Shared.COne, Dirty: 1}
	}
	return Result{Reply: ctx.Shared.CZero, Dirty: 1}
}

func cmdHGet(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	v, found := obj.Hash.Get(argv[2])
	if !found {
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Bulk(v))
}

func cmdHDel(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	if !obj.Hash.Del(argv[2]) {
		return reply(ctx.Shared.CZero)
	}
	if obj.Hash.Len() == 0 {
		ctx.DB.Delete(string(argv[1]))
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdHExists(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	if obj.Hash.Exists(argv[2]) {
		return reply(ctx.Shared.COne)
	}
	return reply(ctx.Shared.CZero)
}

func cmdHLen(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	return reply(protocol.Integer(int64(obj.Hash.Len())))
}

func cmdHGetAll(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	all := obj.Hash.All()
	out := make([][]byte, 0, len(all)*2)
	for k, v := range all {
		out = append(out, []byte(k), v)
	}
	return reply(protocol.MultiBulk(out))
}

func cmdHKeys(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	all := obj.Hash.All()
	out := make([][]byte, 0, len(all))
	for k := range all {
		out = append(out, []byte(k))
	}
	return reply(protocol.MultiBulk(out))
}

func cmdHVals(ctx *Context, argv [][]byte) Result {
	obj, res, ok := hashObj(ctx, string(argv[1]), false)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	all := obj.Hash.All()
	out := make([][]byte, 0, len(all))
	for _, v := range all {
		out = append(out, v)
	}
	return reply(protocol.MultiBulk(out))
}

func cmdHIncrBy(ctx *Context, argv [][]byte) Result {
	delta, ok := parseInt(argv[3])
	if !ok {
		return reply(protocol.Error("ERR value is not an integer or out of range"))
	}
	obj, res, ok := hashObj(ctx, string(argv[1]), true)
	if !ok {
		return res
	}
	var cur int64
	if v, found := obj.Hash.Get(argv[2]); found {
		n, parsed := parseInt(v)
		if !parsed {
			return reply(protocol.Error("ERR hash value is not an integer"))
		}
		cur = n
	}
	cur += delta
	obj.Hash.Set(argv[2], []byte(strconv.FormatInt(cur, 10)))
	return Result{Reply: protocol.Integer(cur), Dirty: 1}
}
