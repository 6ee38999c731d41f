package command

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// multiBulkMembers decodes a MultiBulk reply's bulk string members into a
// sorted slice, so tests can compare set-shaped results independent of the
// map iteration order the handlers return them in.
func multiBulkMembers(t *testing.T, reply []byte) []string {
	t.Helper()
	s := string(reply)
	if !strings.HasPrefix(s, "*") {
		t.Fatalf("not a multi-bulk reply: %q", s)
	}
	lines := strings.Split(s, "\r\n")
	var out []string
	for i := 1; i < len(lines); i++ {
		if lines[i] == "" || !strings.HasPrefix(lines[i], "$") {
			continue
		}
		n, err := strconv.Atoi(lines[i][1:])
		if err != nil || n < 0 {
			continue
		}
		i++
		out = append(out, lines[i])
	}
	sort.Strings(out)
	return out
}

func TestSAddSRem(t *testing.T) {
	tbl, ctx := newTestContext()
	res := dispatch(tbl, ctx, "SADD", "s", "a")
	assert.Equal(t, ctx.Shared.COne, res.Reply)
	res = dispatch(tbl, ctx, "SADD", "s", "a")
	assert.Equal(t, ctx.Shared.CZero, res.Reply, "adding an existing member reports 0")

	res = dispatch(tbl, ctx, "SISMEMBER", "s", "a")
	assert.Equal(t, ctx.Shared.COne, res.Reply)

	res = dispatch(tbl, ctx, "SREM", "s", "a")
	assert.Equal(t, ctx.Shared.COne, res.Reply)
	res = dispatch(tbl, ctx, "EXISTS", "s")
	assert.Equal(t, ctx.Shared.CZero, res.Reply, "removing the last member deletes the key")
}

func TestSMembers(t *testing.T) {
	tbl, ctx := newTestContext()
	dispatch(tbl, ctx, "SADD", "s", "a")
	dispatch(tbl, ctx, "SADD", "s", "b")
	res := dispatch(tbl, ctx, "SMEMBERS", "s")
	assert.Equal(t, []string{"a", "b"}, multiBulkMembers(t, res.Reply))
}

func TestSInterUnionDiff(t *testing.T) {
	tbl, ctx := newTestContext()
	for _, m := range []string{"a", "b", "c"} {
		dispatch(tbl, ctx, "SADD", "s1", m)
	}
	for _, m := range []string{"b", "c", "d"} {
		dispatch(tbl, ctx, "SADD", "s2", m)
	}

	res := dispatch(tbl, ctx, "SINTER", "s1", "s2")
	assert.Equal(t, []string{"b", "c"}, multiBulkMembers(t, res.Reply))

	res = dispatch(tbl, ctx, "SUNION", "s1", "s2")
	assert.Equal(t, []string{"a", "b", "c", "d"}, multiBulkMembers(t, res.Reply))

	res = dispatch(tbl, ctx, "SDIFF", "s1", "s2")
	assert.Equal(t, []string{"a"}, multiBulkMembers(t, res.Reply))
}

func TestSAddWrongType(t *testing.T) {
	tbl, ctx := newTestContext()
	dispatch(tbl, ctx, "SET", "k", "v")
	res := dispatch(tbl, ctx, "SADD", "k", "m")
	assert.Contains(t, string(res.Reply), "WRONGTYPE")
}
