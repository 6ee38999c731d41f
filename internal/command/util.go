package command

import (
	"strconv"

	"gofastdb/internal/protocol"
	"gofastdb/internal/protoerr"
	"gofastdb/internal/value"
)

func parseInt(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

func parseFloat(b []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(b), 64)
	return f, err == nil
}

func errReply(err error) Result {
	return reply(protocol.Error("ERR " + err.Error()))
}

func wrongType() Result {
	return reply(protocol.Error(protoerr.ErrWrongType.Error()))
}

// lookupTyped fetches key, reporting a WRONGTYPE result when present but
// of a different type; ok is false whenever the caller should treat the
// key as absent (either truly missing, or error already written to res).
func lookupTyped(ctx *Context, key string, want value.Type) (obj *value.Object, res Result, ok bool) {
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present {
		return nil, Result{}, false
	}
	if obj.Type != want {
		return nil, wrongType(), false
	}
	return obj, Result{}, true
}
