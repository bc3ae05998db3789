package test

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"
)

// MustBe fails the test if thing1 and thing2 are not deeply equal.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil fails the test if err is not nil.
func ErrNil(t *testing.T, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// TempFileName returns the name of a new temporary file which is removed when
// the test ends.
func TempFileName(t *testing.T) string {
	t.Helper()
	f, err := ioutil.TempFile("", "kdptest")
	ErrNil(t, err, "creating temp file")
	name := f.Name()
	ErrNil(t, f.Close(), "closing temp file")
	t.Cleanup(func() { os.Remove(name) })
	return name
}

// Rows builds n rows with an "n" field counting from 0 and a "name" field.
func Rows(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{"n": int64(i), "name": "row"}
	}
	return rows
}
