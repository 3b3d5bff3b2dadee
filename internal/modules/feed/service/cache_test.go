package service

import "testing"

func TestLastBarCacheNeverRollsBack(t *testing.T) {
	c := NewLastBarCache()
	if _, ok := c.Get("AAPL", "5"); ok {
		t.Fatal("empty cache reported a bar")
	}

	if !c.Set("AAPL", "5", barsAt(300)[0]) {
		t.Fatal("first write rejected")
	}
	if c.Set("AAPL", "5", barsAt(200)[0]) {
		t.Fatal("older bar overwrote newer one")
	}
	if !c.Set("AAPL", "5", barsAt(300)[0]) {
		t.Fatal("same-time update rejected")
	}

	got, _ := c.Get("AAPL", "5")
	if got.Time != 300000 {
		t.Fatalf("cached time = %d, want 300000", got.Time)
	}
	if _, ok := c.Get("AAPL", "1D"); ok {
		t.Fatal("resolutions must not share a slot")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}
