package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gofastdb/internal/value"
)

func TestSetAndLookup(t *testing.T) {
	db := NewDB(0)
	db.Set("k", value.NewString([]byte("v")))
	obj, ok := db.Lookup("k", 100)
	assert.True(t, ok)
	assert.Equal(t, "v", string(obj.Bytes()))
}

func TestLookupLazyExpires(t *testing.T) {
	db := NewDB(0)
	db.SetWithExpire("k", value.NewString([]byte("v")), 50)
	_, ok := db.Lookup("k", 100)
	assert.False(t, ok, "expiry in the past must be lazily removed")
	_, existsInDict := db.Dict["k"]
	assert.False(t, existsInDict, "lazy expiry deletes the key as a side effect")
}

func TestSetClearsExistingTTL(t *testing.T) {
	db := NewDB(0)
	db.SetWithExpire("k", value.NewString([]byte("v1")), 1000)
	db.Set("k", value.NewString([]byte("v2")))
	assert.Equal(t, int64(-1), db.TTL("k", 100), "plain Set clears a prior TTL")
}

func TestDelete(t *testing.T) {
	db := NewDB(0)
	db.Set("k", value.NewString([]byte("v")))
	assert.True(t, db.Delete("k"))
	assert.False(t, db.Delete("k"))
}

func TestExpireAt(t *testing.T) {
	db := NewDB(0)
	assert.False(t, db.ExpireAt("missing", 100, 50), "expiring an absent key reports false")

	db.Set("k", value.NewString([]byte("v")))
	assert.True(t, db.ExpireAt("k", 100, 50))
	assert.Equal(t, int64(50), db.TTL("k", 50))

	assert.True(t, db.ExpireAt("k", 10, 50), "expiring into the past deletes immediately")
	assert.False(t, db.Exists("k", 50))
}

func TestTTL(t *testing.T) {
	db := NewDB(0)
	assert.Equal(t, int64(-2), db.TTL("missing", 0))

	db.Set("k", value.NewString([]byte("v")))
	assert.Equal(t, int64(-1), db.TTL("k", 0), "no TTL set")
}

func TestKeysSkipsExpired(t *testing.T) {
	db := NewDB(0)
	db.Set("live", value.NewString([]byte("v")))
	db.SetWithExpire("dead", value.NewString([]byte("v")), 10)
	keys := db.Keys(100)
	assert.Equal(t, []string{"live"}, keys)
}

func TestListWaiters(t *testing.T) {
	db := NewDB(0)
	w1 := &ListWaiter{ClientID: 1}
	w2 := &ListWaiter{ClientID: 2}
	db.AddListWaiter("k", w1)
	db.AddListWaiter("k", w2)

	got := db.PopListWaiter("k")
	assert.Same(t, w1, got, "FIFO order: first waiter registered pops first")

	got = db.PopListWaiter("k")
	assert.Same(t, w2, got)

	assert.Nil(t, db.PopListWaiter("k"))
}

func TestRemoveListWaiterEverywhere(t *testing.T) {
	db := NewDB(0)
	db.AddListWaiter("a", &ListWaiter{ClientID: 1})
	db.AddListWaiter("b", &ListWaiter{ClientID: 1})
	db.AddListWaiter("b", &ListWaiter{ClientID: 2})

	db.RemoveListWaiterEverywhere(1)
	assert.Nil(t, db.BlockingKeys["a"])
	assert.Len(t, db.BlockingKeys["b"], 1)
	assert.Equal(t, uint64(2), db.BlockingKeys["b"][0].ClientID)
}

func TestIOWaiters(t *testing.T) {
	db := NewDB(0)
	db.AddIOWaiter("k", &IOWaiter{ClientID: 1})
	db.AddIOWaiter("k", &IOWaiter{ClientID: 2})
	waiters := db.PopIOWaiters("k")
	assert.Len(t, waiters, 2)
	assert.Empty(t, db.PopIOWaiters("k"), "PopIOWaiters clears the registration")
}
