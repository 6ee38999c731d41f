package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushPop(t *testing.T) {
	l := New[int]()
	assert.Equal(t, 1, l.LeftPush(2))
	assert.Equal(t, 2, l.LeftPush(1))
	assert.Equal(t, 3, l.RightPush(3))
	assert.Equal(t, []int{1, 2, 3}, l.All())

	v, ok := l.LeftPop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = l.RightPop()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, 1, l.Length())
}

func TestPopEmpty(t *testing.T) {
	l := New[int]()
	_, ok := l.LeftPop()
	assert.False(t, ok)
	_, ok = l.RightPop()
	assert.False(t, ok)
}

func TestIndex(t *testing.T) {
	l := New[string]()
	l.RightPush("a")
	l.RightPush("b")
	l.RightPush("c")

	v, ok := l.Index(0)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = l.Index(-1)
	assert.True(t, ok)
	assert.Equal(t, "c", v)

	_, ok = l.Index(5)
	assert.False(t, ok)
}

func TestRange(t *testing.T) {
	l := New[int]()
	for i := 0; i < 5; i++ {
		l.RightPush(i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, l.Range(0, -1))
	assert.Equal(t, []int{1, 2}, l.Range(1, 2))
	assert.Equal(t, []int{3, 4}, l.Range(-2, -1))
	assert.Equal(t, []int{}, l.Range(4, 1), "start past end yields empty, not an error")
}

func TestSetAt(t *testing.T) {
	l := New[int]()
	l.RightPush(1)
	l.RightPush(2)
	assert.True(t, l.SetAt(-1, 99))
	assert.Equal(t, []int{1, 99}, l.All())
	assert.False(t, l.SetAt(5, 0))
}

func TestRemoveMatching(t *testing.T) {
	mk := func() *List[int] {
		l := New[int]()
		for _, v := range []int{1, 2, 1, 3, 1} {
			l.RightPush(v)
		}
		return l
	}

	l := mk()
	assert.Equal(t, 3, l.RemoveMatching(func(v int) bool { return v == 1 }, 0))
	assert.Equal(t, []int{2, 3}, l.All())

	l = mk()
	assert.Equal(t, 1, l.RemoveMatching(func(v int) bool { return v == 1 }, 1))
	assert.Equal(t, []int{2, 1, 3, 1}, l.All(), "positive count scans head-to-tail")

	l = mk()
	assert.Equal(t, 1, l.RemoveMatching(func(v int) bool { return v == 1 }, -1))
	assert.Equal(t, []int{1, 2, 1, 3}, l.All(), "negative count scans tail-to-head")
}

func TestForEachStopsEarly(t *testing.T) {
	l := New[int]()
	for i := 0; i < 5; i++ {
		l.RightPush(i)
	}
	var seen []int
	l.ForEach(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}
