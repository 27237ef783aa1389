// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#include "shim.h"
*/
import "C"

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Kind is the type tag of a Value. The first five kinds are the SQLite
// storage classes; KindBool is bound as INTEGER 0 or 1.
type Kind int

const (
	KindInteger Kind = INTEGER
	KindFloat   Kind = FLOAT
	KindText    Kind = TEXT
	KindBlob    Kind = BLOB
	KindNull    Kind = NULL
	KindBool    Kind = 6
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindFloat:
		return "FLOAT"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	case KindNull:
		return "NULL"
	case KindBool:
		return "BOOL"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Encoding identifies the byte encoding of text.
type Encoding int

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	case UTF16:
		return "UTF-16"
	}
	return "Encoding(" + strconv.Itoa(int(e)) + ")"
}

// nativeUTF16 is the UTF-16 byte order of the host.
var nativeUTF16 = func() Encoding {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return UTF16LE
	}
	return UTF16BE
}()

// resolve maps UTF16 onto the native byte order and anything unknown onto
// UTF8.
func (e Encoding) resolve() Encoding {
	switch e {
	case UTF16LE, UTF16BE:
		return e
	case UTF16:
		return nativeUTF16
	}
	return UTF8
}

func (e Encoding) codec() encoding.Encoding {
	if e == UTF16BE {
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
}

// Value is a single SQL value crossing the boundary in either direction. Text
// values remember the encoding of their bytes. The zero Value is NULL.
type Value struct {
	kind Kind
	enc  Encoding
	n    int64
	f    float64
	b    []byte
}

// NullValue returns the NULL value.
func NullValue() Value { return Value{kind: KindNull} }

// IntegerValue returns a 64-bit signed integer value.
func IntegerValue(n int64) Value { return Value{kind: KindInteger, n: n} }

// FloatValue returns a double precision floating point value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// TextValue returns a UTF-8 text value.
func TextValue(s string) Value {
	return Value{kind: KindText, enc: UTF8, b: []byte(s)}
}

// Text16Value returns a text value holding the UTF-16 bytes b in byte order
// enc. UTF16 selects the native byte order. b is copied.
func Text16Value(b []byte, enc Encoding) Value {
	if enc = enc.resolve(); enc == UTF8 {
		enc = nativeUTF16
	}
	return Value{kind: KindText, enc: enc, b: append([]byte{}, b...)}
}

// BlobValue returns a BLOB value. b is copied. An empty or nil slice is an
// empty BLOB, not NULL.
func BlobValue(b []byte) Value {
	return Value{kind: KindBlob, b: append([]byte{}, b...)}
}

// BoolValue returns a boolean value, which SQLite stores as INTEGER 0 or 1.
func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

// ValueOf converts a Go value into a Value. Signed and unsigned integers,
// floats, string, []byte, bool, nil, and Value are accepted. Any other type
// and unsigned integers above math.MaxInt64 return a *TypeError.
func ValueOf(v interface{}) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return v, nil
	case int:
		return IntegerValue(int64(v)), nil
	case int8:
		return IntegerValue(int64(v)), nil
	case int16:
		return IntegerValue(int64(v)), nil
	case int32:
		return IntegerValue(int64(v)), nil
	case int64:
		return IntegerValue(v), nil
	case uint8:
		return IntegerValue(int64(v)), nil
	case uint16:
		return IntegerValue(int64(v)), nil
	case uint32:
		return IntegerValue(int64(v)), nil
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return IntegerValue(int64(v)), nil
		}
	case uint64:
		if v <= math.MaxInt64 {
			return IntegerValue(int64(v)), nil
		}
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case string:
		return TextValue(v), nil
	case []byte:
		return BlobValue(v), nil
	case bool:
		return BoolValue(v), nil
	}
	return Value{}, &TypeError{Value: v}
}

// Kind returns the type tag of v.
func (v Value) Kind() Kind {
	if v.kind == 0 {
		return KindNull
	}
	return v.kind
}

// Encoding returns the encoding of a text value, and UTF8 for other kinds.
func (v Value) Encoding() Encoding {
	if v.kind == KindText {
		return v.enc.resolve()
	}
	return UTF8
}

// IsNull returns true if v is NULL.
func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Int64 returns the integer held by an Integer or Bool value. Float values are
// truncated; all other kinds return 0.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInteger, KindBool:
		return v.n
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float64 returns the number held by a numeric value, or 0.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInteger, KindBool:
		return float64(v.n)
	}
	return 0
}

// Bool returns true if v is a non-zero numeric value.
func (v Value) Bool() bool {
	return v.Float64() != 0
}

// Text returns the content of a text value as a Go string, decoding UTF-16
// if necessary. Blob bytes are returned as is; other kinds yield "".
func (v Value) Text() string {
	switch v.kind {
	case KindText:
		if enc := v.Encoding(); enc != UTF8 {
			if b, err := enc.codec().NewDecoder().Bytes(v.b); err == nil {
				return string(b)
			}
		}
		return string(v.b)
	case KindBlob:
		return string(v.b)
	}
	return ""
}

// Bytes returns the raw bytes of a text or blob value. The slice must not be
// modified.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindText, KindBlob:
		return v.b
	}
	return nil
}

// In returns v with text re-encoded to enc. Values of other kinds are returned
// unchanged.
func (v Value) In(enc Encoding) Value {
	enc = enc.resolve()
	if v.kind != KindText || v.Encoding() == enc {
		return v
	}
	s := v.Text()
	if enc == UTF8 {
		return TextValue(s)
	}
	b, err := enc.codec().NewEncoder().Bytes([]byte(s))
	if err != nil {
		return v
	}
	return Value{kind: KindText, enc: enc, b: b}
}

// Interface returns v as int64, float64, string, []byte, bool, or nil.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInteger:
		return v.n
	case KindFloat:
		return v.f
	case KindText:
		return v.Text()
	case KindBlob:
		return v.b
	case KindBool:
		return v.n != 0
	}
	return nil
}

// AssignTo stores v in the variable that dst points to. NULL assigns the zero
// value. Integers are read as Unix seconds for *time.Time.
func (v Value) AssignTo(dst interface{}) error {
	switch dst := dst.(type) {
	case *interface{}:
		*dst = v.Interface()
	case *Value:
		*dst = v
	case *int:
		*dst = int(v.Int64())
	case *int64:
		*dst = v.Int64()
	case *float64:
		*dst = v.Float64()
	case *bool:
		*dst = v.Bool()
	case *string:
		*dst = v.Text()
	case *[]byte:
		if v.IsNull() {
			*dst = nil
		} else {
			*dst = append([]byte{}, v.Bytes()...)
		}
	case *time.Time:
		if v.IsNull() {
			*dst = time.Time{}
		} else {
			*dst = time.Unix(v.Int64(), 0)
		}
	default:
		return &TypeError{Value: dst}
	}
	return nil
}

// Equal returns true if v and w have the same kind, text encoding, and
// content.
func (v Value) Equal(w Value) bool {
	if v.Kind() != w.Kind() {
		return false
	}
	switch v.Kind() {
	case KindInteger, KindBool:
		return v.n == w.n
	case KindFloat:
		return v.f == w.f || (math.IsNaN(v.f) && math.IsNaN(w.f))
	case KindText:
		return v.Encoding() == w.Encoding() && bytes.Equal(v.b, w.b)
	case KindBlob:
		return bytes.Equal(v.b, w.b)
	}
	return true
}

// String implements fmt.Stringer. Blobs are formatted as SQL hex literals.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.Text()
	case KindBlob:
		return "x'" + hex.EncodeToString(v.b) + "'"
	case KindBool:
		return strconv.FormatBool(v.n != 0)
	}
	return "NULL"
}

// bind binds v to parameter i (starting at 1) of stmt.
// [http://www.sqlite.org/c3ref/bind_blob.html]
func (v Value) bind(stmt *C.sqlite3_stmt, i C.int) C.int {
	switch v.Kind() {
	case KindInteger:
		return C.sqlite3_bind_int64(stmt, i, C.sqlite3_int64(v.n))
	case KindFloat:
		return C.sqlite3_bind_double(stmt, i, C.double(v.f))
	case KindBool:
		return C.sqlite3_bind_int(stmt, i, C.int(v.n))
	case KindText:
		return C.shim_bind_text(stmt, i, cBytes(v.b), C.sqlite3_int64(len(v.b)),
			C.int(v.Encoding()))
	case KindBlob:
		return C.shim_bind_blob(stmt, i, cBytes(v.b), C.sqlite3_int64(len(v.b)))
	case KindNull:
		return C.sqlite3_bind_null(stmt, i)
	}
	panic("sqlite3: invalid value kind " + v.kind.String())
}

// result sets v as the result of a user-defined function.
// [http://www.sqlite.org/c3ref/result_blob.html]
func (v Value) result(ctx *C.sqlite3_context) {
	switch v.Kind() {
	case KindInteger, KindBool:
		C.sqlite3_result_int64(ctx, C.sqlite3_int64(v.n))
	case KindFloat:
		C.sqlite3_result_double(ctx, C.double(v.f))
	case KindText:
		C.shim_result_text(ctx, cBytes(v.b), C.sqlite3_int64(len(v.b)),
			C.int(v.Encoding()))
	case KindBlob:
		C.shim_result_blob(ctx, cBytes(v.b), C.sqlite3_int64(len(v.b)))
	case KindNull:
		C.sqlite3_result_null(ctx)
	default:
		panic("sqlite3: invalid value kind " + v.kind.String())
	}
}

// columnValue decodes column i (starting at 0) of the current row. Text is
// returned in encoding enc. sqlite3_column_type must be called before any
// conversion, since its result becomes undefined afterwards.
// [http://www.sqlite.org/c3ref/column_blob.html]
func columnValue(stmt *C.sqlite3_stmt, i C.int, enc Encoding) Value {
	switch C.sqlite3_column_type(stmt, i) {
	case INTEGER:
		return IntegerValue(int64(C.sqlite3_column_int64(stmt, i)))
	case FLOAT:
		return FloatValue(float64(C.sqlite3_column_double(stmt, i)))
	case TEXT:
		p := unsafe.Pointer(C.sqlite3_column_text(stmt, i))
		v := Value{kind: KindText, enc: UTF8, b: goBytes(p, C.sqlite3_column_bytes(stmt, i))}
		return v.In(enc)
	case BLOB:
		p := C.sqlite3_column_blob(stmt, i)
		return Value{kind: KindBlob, b: goBytes(p, C.sqlite3_column_bytes(stmt, i))}
	case NULL:
		return NullValue()
	}
	panic("sqlite3: invalid storage class for column " + strconv.Itoa(int(i)))
}

// argValue decodes a user-defined function argument. Text is requested from
// SQLite directly in encoding enc.
// [http://www.sqlite.org/c3ref/value_blob.html]
func argValue(arg *C.sqlite3_value, enc Encoding) Value {
	switch C.sqlite3_value_type(arg) {
	case INTEGER:
		return IntegerValue(int64(C.sqlite3_value_int64(arg)))
	case FLOAT:
		return FloatValue(float64(C.sqlite3_value_double(arg)))
	case TEXT:
		var p unsafe.Pointer
		var n C.int
		switch enc = enc.resolve(); enc {
		case UTF16LE:
			p = C.sqlite3_value_text16le(arg)
			n = C.sqlite3_value_bytes16(arg)
		case UTF16BE:
			p = C.sqlite3_value_text16be(arg)
			n = C.sqlite3_value_bytes16(arg)
		default:
			p = unsafe.Pointer(C.sqlite3_value_text(arg))
			n = C.sqlite3_value_bytes(arg)
		}
		return Value{kind: KindText, enc: enc, b: goBytes(p, n)}
	case BLOB:
		p := C.sqlite3_value_blob(arg)
		return Value{kind: KindBlob, b: goBytes(p, C.sqlite3_value_bytes(arg))}
	case NULL:
		return NullValue()
	}
	panic("sqlite3: invalid storage class for function argument")
}
