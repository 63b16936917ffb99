package util

import (
	"bytes"
	"reflect"
	"testing"
)

func TestMap(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if !reflect.DeepEqual(doubled, []int{2, 4, 6}) {
		t.Errorf("want [2 4 6] got %v", doubled)
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("want [a b c] got %v", keys)
	}
}

func TestCollectMissing(t *testing.T) {
	c := MakeCollect("orders", "events")
	missing := c.Missing([]string{"orders", "vendors", "vendors", "events", "payments"})
	if !reflect.DeepEqual(missing, []string{"vendors", "payments"}) {
		t.Errorf("want [vendors payments] got %v", missing)
	}
	if len(c.Missing(nil)) != 0 {
		t.Errorf("want nothing missing")
	}
}

func TestDefaultSlice(t *testing.T) {
	row := DefaultSlice[string]{"a", "b"}
	if row.At(1) != "b" {
		t.Errorf("want b got %s", row.At(1))
	}
	if row.At(5) != "" {
		t.Errorf("want empty got %s", row.At(5))
	}
}

func TestExcelRoundTrip(t *testing.T) {
	f := MakeExcelFromData([][]interface{}{{"Dune", 412}, {"Emma", 474}}, []string{"title", "pages"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ReadFirstSheet(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"title", "pages"}, {"Dune", "412"}, {"Emma", "474"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("want %v got %v", want, rows)
	}
}
