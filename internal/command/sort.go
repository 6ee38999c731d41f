package command

import (
	"bytes"
	"sort"
	"strings"

	"gofastdb/internal/protocol"
	"gofastdb/internal/value"
)

func registerSort(t *Table) {
	t.register(&Spec{Name: "SORT", Arity: -2, Flags: FlagDenyOOM | FlagWrite, Keys: KeySpec{1, 1, 1}, Handler: cmdSort})
}

type sortOptions struct {
	by       string
	limitSet bool
	offset   int
	count    int
	get      []string
	desc     bool
	alpha    bool
	store    string
	storeSet bool
}

func parseSortOptions(argv [][]byte) (sortOptions, Result) {
	var o sortOptions
	for i := 2; i < len(argv); i++ {
		word := strings.ToUpper(string(argv[i]))
		switch word {
		case "ASC":
			o.desc = false
		case "DESC":
			o.desc = true
		case "ALPHA":
			o.alpha = true
		case "BY":
			if i+1 >= len(argv) {
				return o, reply(protocol.Error("ERR syntax error"))
			}
			i++
			o.by = string(argv[i])
		case "LIMIT":
			if i+2 >= len(argv) {
				return o, reply(protocol.Error("ERR syntax error"))
			}
			off, ok1 := parseInt(argv[i+1])
			cnt, ok2 := parseInt(argv[i+2])
			if !ok1 || !ok2 {
				return o, reply(protocol.Error("ERR syntax error"))
			}
			o.limitSet = true
			o.offset, o.count = int(off), int(cnt)
			i += 2
		case "GET":
			if i+1 >= len(argv) {
				return o, reply(protocol.Error("ERR syntax error"))
			}
			i++
			o.get = append(o.get, string(argv[i]))
		case "STORE":
			if i+1 >= len(argv) {
				return o, reply(protocol.Error("ERR syntax error"))
			}
			i++
			o.store = string(argv[i])
			o.storeSet = true
		default:
			return o, reply(protocol.Error("ERR syntax error"))
		}
	}
	return o, Result{}
}

// substitute replaces the first '*' in pattern with elem.
func substitute(pattern, elem string) string {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return pattern
	}
	return pattern[:idx] + elem + pattern[idx+1:]
}

func (ctx *Context) lookupString(key string) ([]byte, bool) {
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	if !present || obj.Type != value.TypeString {
		return nil, false
	}
	return obj.Bytes(), true
}

func cmdSort(ctx *Context, argv [][]byte) Result {
	key := string(argv[1])
	obj, present := ctx.DB.Lookup(key, ctx.Now)
	var elems []string
	switch {
	case !present:
		elems = []string{}
	case obj.Type == value.TypeList:
		for _, v := range obj.List.All() {
			elems = append(elems, string(v))
		}
	case obj.Type == value.TypeSet:
		for m := range obj.Set {
			elems = append(elems, m)
		}
	case obj.Type == value.TypeZSet:
		for _, e := range obj.ZSet.All() {
			elems = append(elems, e.Member)
		}
	default:
		return wrongType()
	}

	opts, errRes := parseSortOptions(argv)
	if errRes.Reply != nil {
		return errRes
	}

	noSort := opts.by != "" && !strings.Contains(opts.by, "*")
	if !noSort {
		weight := func(e string) []byte {
			if opts.by == "" {
				return []byte(e)
			}
			v, ok := ctx.lookupString(substitute(opts.by, e))
			if !ok {
				return nil
			}
			return v
		}
		sort.SliceStable(elems, func(i, j int) bool {
			wi, wj := weight(elems[i]), weight(elems[j])
			var less bool
			if opts.alpha {
				less = bytes.Compare(wi, wj) < 0
			} else {
				fi, _ := parseFloat(wi)
				fj, _ := parseFloat(wj)
				less = fi < fj
			}
			if opts.desc {
				return !less
			}
			return less
		})
	}

	if opts.limitSet {
		start := opts.offset
		if start < 0 {
			start = 0
		}
		if start > len(elems) {
			start = len(elems)
		}
		end := len(elems)
		if opts.count >= 0 && start+opts.count < end {
			end = start + opts.count
		}
		elems = elems[start:end]
	}

	var out [][]byte
	if len(opts.get) == 0 {
		out = make([][]byte, len(elems))
		for i, e := range elems {
			out[i] = []byte(e)
		}
	} else {
		out = make([][]byte, 0, len(elems)*len(opts.get))
		for _, e := range elems {
			for _, pat := range opts.get {
				if pat == "#" {
					out = append(out, []byte(e))
					continue
				}
				v, ok := ctx.lookupString(substitute(pat, e))
				if !ok {
					out = append(out, nil)
					continue
				}
				out = append(out, v)
			}
		}
	}

	if opts.storeSet {
		list := value.NewList()
		for _, v := range out {
			list.List.RightPush(v)
		}
		ctx.DB.Set(opts.store, list)
		return Result{Reply: protocol.Integer(int64(len(out))), Dirty: 1}
	}

	return Result{Reply: multiBulkNilable(out)}
}

// multiBulkNilable renders a multi-bulk reply where a nil element becomes
// a null bulk entry (SORT ... GET on a missing key), unlike protocol.MultiBulk
// which treats every element as present.
func multiBulkNilable(elems [][]byte) []byte {
	out := protocol.MultiBulkHeader(len(elems))
	for _, e := range elems {
		if e == nil {
			out = append(out, protocol.NilBulk()...)
			continue
		}
		out = append(out, protocol.Bulk(e)...)
	}
	return out
}
