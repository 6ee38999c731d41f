package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHSetHGet(t *testing.T) {
	tbl, ctx := newTestContext()
	res := dispatch(tbl, ctx, "HSET", "h", "f1", "v1")
	assert.Equal(t, ctx.Shared.COne, res.Reply)
	res = dispatch(tbl, ctx, "HSET", "h", "f1", "v2")
	assert.Equal(t, ctx.Shared.CZero, res.Reply, "updating an existing field reports 0")

	res = dispatch(tbl, ctx, "HGET", "h", "f1")
	assert.Equal(t, "$2\r\nv2\r\n", string(res.Reply))

	res = dispatch(tbl, ctx, "HGET", "h", "missing")
	assert.Equal(t, ctx.Shared.NilBulk, res.Reply)
}

func TestHDelAndExists(t *testing.T) {
	tbl, ctx := newTestContext()
	dispatch(tbl, ctx, "HSET", "h", "f1", "v1")

	res := dispatch(tbl, ctx, "HEXISTS", "h", "f1")
	assert.Equal(t, ctx.Shared.COne, res.Reply)

	res = dispatch(tbl, ctx, "HDEL", "h", "f1")
	assert.Equal(t, ctx.Shared.COne, res.Reply)

	res = dispatch(tbl, ctx, "EXISTS", "h")
	assert.Equal(t, ctx.Shared.CZero, res.Reply, "deleting the last field removes the key")
}

func TestHLenAndGetAll(t *testing.T) {
	tbl, ctx := newTestContext()
	dispatch(tbl, ctx, "HSET", "h", "a", "1")
	dispatch(tbl, ctx, "HSET", "h", "b", "2")

	res := dispatch(tbl, ctx, "HLEN", "h")
	assert.Equal(t, ":2\r\n", string(res.Reply))

	res = dispatch(tbl, ctx, "HGETALL", "h")
	assert.Equal(t, []string{"1", "2", "a", "b"}, multiBulkMembers(t, res.Reply))
}

func TestHIncrBy(t *testing.T) {
	tbl, ctx := newTestContext()
	res := dispatch(tbl, ctx, "HINCRBY", "h", "counter", "5")
	assert.Equal(t, ":5\r\n", string(res.Reply))
	res = dispatch(tbl, ctx, "HINCRBY", "h", "counter", "-2")
	assert.Equal(t, ":3\r\n", string(res.Reply))
}

func TestHSetWrongType(t *testing.T) {
	tbl, ctx := newTestContext()
	dispatch(tbl, ctx, "SET", "k", "v")
	res := dispatch(tbl, ctx, "HSET", "k", "f", "v")
	assert.Contains(t, string(res.Reply), "WRONGTYPE")
}
