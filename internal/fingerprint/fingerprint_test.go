package fingerprint

import "testing"

func TestOf_StableUnderKeyReorder(t *testing.T) {
	a := struct {
		ReservationID string `json:"reservationId"`
		Note          string `json:"note"`
	}{ReservationID: "r1", Note: "hello"}

	b := struct {
		Note          string `json:"note"`
		ReservationID string `json:"reservationId"`
	}{Note: "hello", ReservationID: "r1"}

	fa, err := Of(a)
	if err != nil {
		t.Fatalf("Of(a): %v", err)
	}
	fb, err := Of(b)
	if err != nil {
		t.Fatalf("Of(b): %v", err)
	}
	if fa != fb {
		t.Fatalf("expected equal fingerprints for structurally equal payloads, got %q vs %q", fa, fb)
	}
}

func TestOf_DifferentPayloadsDiffer(t *testing.T) {
	fa, err := Of(map[string]any{"reservationId": "r1"})
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	fb, err := Of(map[string]any{"reservationId": "r2"})
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if fa == fb {
		t.Fatal("expected different fingerprints for different payloads")
	}
}

func TestOf_NestedMapsAndSlicesCanonicalize(t *testing.T) {
	a := map[string]any{
		"b": 2,
		"a": []any{1, 2, 3},
	}
	b := map[string]any{
		"a": []any{1, 2, 3},
		"b": 2,
	}

	fa, err := Of(a)
	if err != nil {
		t.Fatalf("Of(a): %v", err)
	}
	fb, err := Of(b)
	if err != nil {
		t.Fatalf("Of(b): %v", err)
	}
	if fa != fb {
		t.Fatalf("expected equal fingerprints, got %q vs %q", fa, fb)
	}
}

func TestOf_IsHexSHA256Length(t *testing.T) {
	f, err := Of(map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if len(f) != 64 {
		t.Fatalf("expected 64 hex chars, got %d: %q", len(f), f)
	}
}
