package main

import (
	"testing"
)

func TestFirstElementOf(t *testing.T) {
	if val := firstElementOf([]string{"a", "b"}); val != "a" {
		t.Errorf("expected [a], got [%s]", val)
	}

	if val := firstElementOf(nil); val != "" {
		t.Errorf("expected blank string, got [%s]", val)
	}
}

func TestIntSliceContains(t *testing.T) {
	years := []int{2019, 2020}

	if intSliceContains(years, 2020) == false {
		t.Errorf("expected 2020 to be found")
	}

	if intSliceContains(years, 1999) == true {
		t.Errorf("expected 1999 to be missing")
	}
}

func TestTimeoutWithMinimum(t *testing.T) {
	if val := timeoutWithMinimum("30", 5); val != 30 {
		t.Errorf("expected 30, got %d", val)
	}

	if val := timeoutWithMinimum("1", 5); val != 5 {
		t.Errorf("expected minimum of 5, got %d", val)
	}

	if val := timeoutWithMinimum("bogus", 5); val != 5 {
		t.Errorf("expected minimum for unparseable value, got %d", val)
	}
}
