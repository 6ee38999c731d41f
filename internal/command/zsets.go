package command

import (
	"strconv"
	"strings"

	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
	"gofastdb/internal/zset"
)

func registerZSets(t *Table) {
	t.register(&Spec{Name: "ZADD", Arity: 4, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdZAdd})
	t.register(&Spec{Name: "ZINCRBY", Arity: 4, Flags: FlagBulk | FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdZIncrBy})
	t.register(&Spec{Name: "ZREM", Arity: 3, Flags: FlagBulk | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdZRem})
	t.register(&Spec{Name: "ZSCORE", Arity: 3, Flags: FlagBulk, Keys: KeySpec{1, 1, 1}, Handler: cmdZScore})
	t.register(&Spec{Name: "ZRANK", Arity: 3, Flags: FlagBulk, Keys: KeySpec{1, 1, 1}, Handler: cmdZRank})
	t.register(&Spec{Name: "ZCARD", Arity: 2, Keys: KeySpec{1, 1, 1}, Handler: cmdZCard})
	t.register(&Spec{Name: "ZRANGE", Arity: -4, Keys: KeySpec{1, 1, 1}, Handler: cmdZRange})
	t.register(&Spec{Name: "ZRANGEBYSCORE", Arity: -4, Keys: KeySpec{1, 1, 1}, Handler: cmdZRangeByScore})
}

func cmdZAdd(ctx *Context, argv [][]byte) Result {
	score, ok := parseFloat(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not a valid float"))
	}
	key := string(argv[1])
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		obj = value.NewZSet()
		ctx.DB.Set(key, obj)
	} else if obj.Type != value.TypeZSet {
		return wrongType()
	}
	member := string(argv[3])
	_, existed := obj.ZSet.Score(member)
	obj.ZSet.Insert(member, score)
	if existed {
		return Result{Reply: ctx.Shared.CZero, Dirty: 1}
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdZIncrBy(ctx *Context, argv [][]byte) Result {
	delta, ok := parseFloat(argv[2])
	if !ok {
		return reply(protocol.Error("ERR value is not a valid float"))
	}
	key := string(argv[1])
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		obj = value.NewZSet()
		ctx.DB.Set(key, obj)
	} else if obj.Type != value.TypeZSet {
		return wrongType()
	}
	member := string(argv[3])
	cur, _ := obj.ZSet.Score(member)
	newScore := cur + delta
	obj.ZSet.Insert(member, newScore)
	return Result{Reply: protocol.Bulk([]byte(formatScore(newScore))), Dirty: 1}
}

func cmdZRem(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	if !obj.ZSet.Remove(string(argv[2])) {
		return reply(ctx.Shared.CZero)
	}
	if obj.ZSet.Len() == 0 {
		ctx.DB.Delete(string(argv[1]))
	}
	return Result{Reply: ctx.Shared.COne, Dirty: 1}
}

func cmdZScore(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	score, found := obj.ZSet.Score(string(argv[2]))
	if !found {
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Bulk([]byte(formatScore(score))))
}

func cmdZRank(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.NilBulk)
	}
	rank, found := obj.ZSet.Rank(string(argv[2]))
	if !found {
		return reply(ctx.Shared.NilBulk)
	}
	return reply(protocol.Integer(int64(rank)))
}

func cmdZCard(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.CZero)
	}
	return reply(protocol.Integer(int64(obj.ZSet.Len())))
}

// formatScore renders a ZSET score the canonical way:
// "%.17g"-style, trimmed of a redundant decimal point for whole numbers.
func formatScore(f float64) string {
	s := strconv.FormatFloat(f, 'g', 17, 64)
	return s
}

func entriesToReply(entries []zset.Entry, withScores bool) []byte {
	if !withScores {
		out := make([][]byte, len(entries))
		for i, e := range entries {
			out[i] = []byte(e.Member)
		}
		return protocol.MultiBulk(out)
	}
	out := make([][]byte, 0, len(entries)*2)
	for _, e := range entries {
		out = append(out, []byte(e.Member), []byte(formatScore(e.Score)))
	}
	return protocol.MultiBulk(out)
}

func cmdZRange(ctx *Context, argv [][]byte) Result {
	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	withScores := len(argv) == 5 && strings.EqualFold(string(argv[4]), "WITHSCORES")
	if len(argv) != 4 && !withScores {
		return reply(protocol.Error("ERR syntax error"))
	}
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
	entries := obj.ZSet.RangeByRank(int(start), int(end))
	return reply(entriesToReply(entries, withScores))
}

func parseScoreBound(b []byte) (zset.ScoreBound, bool) {
	s := string(b)
	if strings.HasPrefix(s, "(") {
		f, ok := parseFloat([]byte(s[1:]))
		return zset.ScoreBound{Value: f, Exclusive: true}, ok
	}
	f, ok := parseFloat(b)
	return zset.ScoreBound{Value: f}, ok
}

func cmdZRangeByScore(ctx *Context, argv [][]byte) Result {
	min, ok1 := parseScoreBound(argv[2])
	max, ok2 := parseScoreBound(argv[3])
	if !ok1 || !ok2 {
		return reply(protocol.Error("ERR min or max is not a float"))
	}
	withScores := false
	offset, limit := 0, -1
	for i := 4; i < len(argv); i++ {
		switch {
		case strings.EqualFold(string(argv[i]), "WITHSCORES"):
			withScores = true
		case strings.EqualFold(string(argv[i]), "LIMIT") && i+2 < len(argv):
			o, oOK := parseInt(argv[i+1])
			l, lOK := parseInt(argv[i+2])
			if !oOK || !lOK {
				return reply(protocol.Error("ERR syntax error"))
			}
			offset, limit = int(o), int(l)
			i += 2
		default:
			return reply(protocol.Error("ERR syntax error"))
		}
	}

	obj, res, ok := lookupTyped(ctx, string(argv[1]), value.TypeZSet)
	if !ok {
		if res.Reply != nil {
			return res
		}
		return reply(ctx.Shared.EmptyMultiBulk)
	}
	entries := obj.ZSet.RangeByScore(min, max, offset, limit)
	return reply(entriesToReply(entries, withScores))
}
