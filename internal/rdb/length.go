// Package rdb implements the snapshot codec: the
// "REDIS0001"-prefixed on-disk dump format, its 2-bit length-prefix
// shapes, integer/LZF-style string sub-encodings, and per-type payload
// encode/decode used by SAVE/BGSAVE and by replica bootstrap.
//
// This package follows the normative on-disk layout directly, the same
// way the rest of this module follows its own wire framing for RESP.
package rdb

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

const (
	opExpireTime = 0xFD
	opSelectDB   = 0xFE
	opEOF        = 0xFF

	lenShape6Bit  = 0 // 00xxxxxx
	lenShape14Bit = 1 // 01xxxxxx yyyyyyyy
	lenShape32Bit = 2 // 10...... + 4 bytes BE
	lenShapeEnc   = 3 // 11xxxxxx: follow-on sub-encoding

	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

// writeLength renders n using the smallest of the three plain shapes.
func writeLength(w *bufio.Writer, n int) error {
	switch {
	case n < 1<<6:
		return w.WriteByte(byte(n))
	case n < 1<<14:
		if err := w.WriteByte(0x40 | byte(n>>8)); err != nil {
			return err
		}
		return w.WriteByte(byte(n))
	default:
		if err := w.WriteByte(0x80); err != nil {
			return err
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(n))
		_, err := w.Write(buf[:])
		return err
	}
}

// writeEncodingMarker writes the "11xxxxxx" byte selecting sub-encoding enc.
func writeEncodingMarker(w *bufio.Writer, enc byte) error {
	return w.WriteByte(0xC0 | enc)
}

// readLength reads a length field, reporting whether it was instead a
// "11xxxxxx" sub-encoding marker (in which case enc holds the low 6 bits
// and n is meaningless).
func readLength(r *bufio.Reader) (n int, isEncoded bool, enc byte, err error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, false, 0, err
	}
	switch first >> 6 {
	case lenShape6Bit:
		return int(first & 0x3F), false, 0, nil
	case lenShape14Bit:
		second, err := r.ReadByte()
		if err != nil {
			return 0, false, 0, err
		}
		return int(first&0x3F)<<8 | int(second), false, 0, nil
	case lenShape32Bit:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, false, 0, err
		}
		return int(binary.BigEndian.Uint32(buf[:])), false, 0, nil
	default: // lenShapeEnc
		return 0, true, first & 0x3F, nil
	}
}

// tryIntEncoding reports whether s round-trips through decimal parsing and
// fits the given bit width.
func tryIntEncoding(s []byte) (v int64, width int, ok bool) {
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != string(s) {
		return 0, 0, false
	}
	switch {
	case n >= -128 && n <= 127:
		return n, 8, true
	case n >= -32768 && n <= 32767:
		return n, 16, true
	case n >= -2147483648 && n <= 2147483647:
		return n, 32, true
	default:
		return 0, 0, false
	}
}

// writeString writes b using the best available sub-encoding: integer form
// when it round-trips, LZF-style compression (here: compress/flate — see
// DESIGN.md) when enabled and b is long enough to be worth it, else the
// plain length+bytes form.
func writeString(w *bufio.Writer, b []byte, compress bool) error {
	if v, width, ok := tryIntEncoding(b); ok {
		switch width {
		case 8:
			if err := writeEncodingMarker(w, encInt8); err != nil {
				return err
			}
			return w.WriteByte(byte(int8(v)))
		case 16:
			if err := writeEncodingMarker(w, encInt16); err != nil {
				return err
			}
			var buf [2]byte
			binary.LittleEndian.PutUint16(buf[:], uint16(int16(v)))
			_, err := w.Write(buf[:])
			return err
		case 32:
			if err := writeEncodingMarker(w, encInt32); err != nil {
				return err
			}
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
			_, err := w.Write(buf[:])
			return err
		}
	}

	if compress && len(b) > 20 {
		if compressed, ok := compressBytes(b); ok {
			if err := writeEncodingMarker(w, encLZF); err != nil {
				return err
			}
			if err := writeLength(w, len(compressed)); err != nil {
				return err
			}
			if err := writeLength(w, len(b)); err != nil {
				return err
			}
			_, err := w.Write(compressed)
			return err
		}
	}

	if err := writeLength(w, len(b)); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func compressBytes(b []byte) ([]byte, bool) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := fw.Write(b); err != nil {
		return nil, false
	}
	if err := fw.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(b) {
		return nil, false // not worth it
	}
	return buf.Bytes(), true
}

func decompressBytes(compressed []byte, ulen int) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()
	out := make([]byte, ulen)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("rdb: decompress: %w", err)
	}
	return out, nil
}

// readString reads one string-with-sub-encoding value.
func readString(r *bufio.Reader) ([]byte, error) {
	n, isEncoded, enc, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if !isEncoded {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	switch enc {
	case encInt8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int8(b)), 10)), nil
	case encInt16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(buf[:]))), 10)), nil
	case encInt32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(buf[:]))), 10)), nil
	case encLZF:
		clen, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		ulen, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		compressed := make([]byte, clen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, err
		}
		return decompressBytes(compressed, ulen)
	default:
		return nil, fmt.Errorf("rdb: unknown string sub-encoding %d", enc)
	}
}

// writeDouble renders a ZSET score: 253=NaN, 254=+Inf,
// 255=-Inf, otherwise one length byte followed by that many ASCII digits.
func writeDouble(w *bufio.Writer, f float64) error {
	switch {
	case math.IsNaN(f):
		return w.WriteByte(253)
	case math.IsInf(f, 1):
		return w.WriteByte(254)
	case math.IsInf(f, -1):
		return w.WriteByte(255)
	}
	s := strconv.FormatFloat(f, 'g', 17, 64)
	if err := w.WriteByte(byte(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readDouble(r *bufio.Reader) (float64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 253:
		return math.NaN(), nil
	case 254:
		return math.Inf(1), nil
	case 255:
		return math.Inf(-1), nil
	}
	buf := make([]byte, b)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(string(buf), 64)
}
