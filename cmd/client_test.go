package main

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func TestLogResponseVerbatimError(t *testing.T) {
	var buf bytes.Buffer

	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	cl := clientContext{reqID: "deadbeef"}
	cl.logResponse(searchResponse{status: 500, err: errors.New("value out of range [100%]")})

	logged := buf.String()

	// error text must pass through as-is, not be reinterpreted as a format string
	if strings.Contains(logged, "%!") == true {
		t.Errorf("error text was mangled in the log: %s", logged)
	}

	if strings.Contains(logged, "value out of range [100%]") == false {
		t.Errorf("expected error text in the log, got: %s", logged)
	}
}

func TestBoolOptionWithFallback(t *testing.T) {
	if boolOptionWithFallback("true", false) == false {
		t.Errorf("expected explicit true to win")
	}

	if boolOptionWithFallback("bogus", true) == false {
		t.Errorf("expected fallback for unparseable value")
	}

	if boolOptionWithFallback("", false) == true {
		t.Errorf("expected fallback for empty value")
	}
}
