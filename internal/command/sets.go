package command

import (
	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
)

func registerSets(t *Table) {
	t.register(&Spec{Name: "SADD", Arity: 3, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSAdd})
	t.register(&Spec{Name: "SREM", Arity: 3, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSRem})
	t.register(&Spec{Name: "SISMEMBER", Arity: 3, Flags: FlagBulk, Keys: KeySpec{1, 1, 1}, Handler: cmdSIsMember})
	t.register(&Spec{Name: "SCARD", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdSCard})
	t.register(&Spec{Name: "SMEMBERS", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdSMembers})
	t.register(&Spec{Name: "SINTER", Arity: -2, Keys: KeySpec{1, -1, 1}, Handler: cmdSInter})
	t.register(&Spec{Name: "SUNION", Arity: -2, Keys: KeySpec{1, -1, 1}, Handler: cmdSUnion})
	t.register(&Spec{Name: "SDIFF", Arity: -2, Keys: KeySpec{1, -1, 1}, Handler: cmdSDiff})
}

func cmdSAdd(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		obj = value.NewSet()
		ctx.DB.Set(key, obj)
	} else if obj.Type != value.TypeSet {
		return wrongType()
	}
	member := string(argv[2])
	if _, exists := obj.Set[member]; exists {
		return Result{Reply: ctx.Shared.CZero}
	}
	obj.Set[member] = struct{}{}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdSRem(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	member := string(argv[2])
	if _, exists := obj.Set[member]; !exists {
		return Result{Reply: ctx.Shared.CZero}
	}
	delete(obj.Set, member)
	if len(obj.Set) == 0 {
		ctx.DB.Delete(string(argv[1]))
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdSIsMember(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	if _, exists := obj.Set[string(argv[2])]; exists {
		return reply(ctx.Shared.COne)
	}
	return reply(ctx.Shared.CZero)
}

func cmdSCard(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	return reply(protocol.Integer(int64(len(obj.Set))))
}

func cmdSMembers(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	out := make([][]byte, 0, len(obj.Set))
	for m := range obj.Set {
		out = append(out, []byte(m))
	}
	return reply(protocol.MultiBulk(out))
}

func setsOf(ctx *Context, keys [][]byte) ([]map[string]struct{}, Result, bool) {
	sets := make([]map[string]struct{}, 0, len(keys))
	for _, k := range keys {
		obj, present := ctx.DB.Lookup(string(k), ctx.Now)
		if !present {
			sets = append(sets, map[string]struct{}{})
			continue
		}
		if obj.Type != value.TypeSet {
			return nil, wrongType(), false
		}
		sets = append(sets, obj.Set)
	}
	return sets, Result{}, true
}

func cmdSInter(ctx *Context, argv [][]byte) Result {
	sets, res, ok := setsOf(ctx, argv[1:])
	if !ok {
		return res
	}
	out := [][]byte{}
	if len(sets) > 0 {
		for m := range sets[0] {
			inAll := true
			for _, s := range sets[1:] {
				if _, ok := s[m]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				out = append(out, []byte(m))
			}
		}
	}
	return reply(protocol.MultiBulk(out))
}

func cmdSUnion(ctx *Context, argv [][]byte) Result {
	sets, res, ok := setsOf(ctx, argv[1:])
	if !ok {
		return res
	}
	seen := map[string]struct{}{}
	for _, s := range sets {
		for m := range s {
			seen[m] = struct{}{}
		}
	}
	out := make([][]byte, 0, len(seen))
	for m := range seen {
		out = append(out, []byte(m))
	}
	return reply(protocol.MultiBulk(out))
}

func cmdSDiff(ctx *Context, argv [][]byte) Result {
	sets, res, ok := setsOf(ctx, argv[1:])
	if !ok {
		return res
	}
	out := [][]byte{}
	if len(sets) > 0 {
		for m := range sets[0] {
			inAny := false
			for _, s := range sets[1:] {
				if _, ok := s[m]; ok {
					inAny = true
					break
				}
			}
			if !inAny {
				out = append(out, []byte(m))
			}
		}
	}
	return reply(protocol.MultiBulk(out))
}
