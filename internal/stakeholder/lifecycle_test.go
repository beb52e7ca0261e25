package stakeholder

import (
	"reflect"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusCreated:  {StatusEngaged, StatusArchived},
		StatusEngaged:  {StatusActive, StatusDormant, StatusArchived},
		StatusActive:   {StatusDormant, StatusArchived},
		StatusDormant:  {StatusActive, StatusArchived},
		StatusArchived: {},
	}
	for _, from := range Statuses {
		want := map[Status]bool{}
		for _, to := range allowed[from] {
			want[to] = true
		}
		for _, to := range Statuses {
			if got := CanTransition(from, to); got != want[to] {
				t.Fatalf("CanTransition(%s, %s)=%v, want %v", from, to, got, want[to])
			}
		}
		if got := AllowedTransitions(from); !reflect.DeepEqual(got, allowed[from]) {
			t.Fatalf("AllowedTransitions(%s)=%v, want %v", from, got, allowed[from])
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	if Status("closed").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
	if CanTransition("closed", StatusArchived) {
		t.Fatalf("unknown status must not transition")
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types {
		if !typ.Valid() {
			t.Fatalf("%s should be valid", typ)
		}
	}
	for _, bad := range []Type{"", "medical_director", "Referrer"} {
		if bad.Valid() {
			t.Fatalf("%q should be invalid", bad)
		}
	}
}
