package directory

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	d, err := Parse("Mayor=1001, Town Clerk = 1002 ,Treasurer=1003")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	entries := d.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].RoleName != "Mayor" || entries[0].ChatID != 1001 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].RoleName != "Town Clerk" || entries[1].ChatID != 1002 {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty roster":    "",
		"commas only":     " , ,",
		"missing id":      "Mayor=",
		"missing name":    "=1001",
		"no separator":    "Mayor1001",
		"id not a number": "Mayor=abc",
		"duplicate role":  "Mayor=1,mayor=2",
	}
	for name, roster := range cases {
		if _, err := Parse(roster); err == nil {
			t.Errorf("%s: Parse(%q) should fail", name, roster)
		}
	}
}

func TestParse_NameMayContainEquals(t *testing.T) {
	// The chat id follows the LAST '=', so role names may carry one.
	d, err := Parse("A=B Dept=42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e := d.Entries()[0]
	if e.RoleName != "A=B Dept" || e.ChatID != 42 {
		t.Errorf("entry = %+v", e)
	}
}

func TestLookupName(t *testing.T) {
	d, err := Parse("Mayor=1001,Straße=1002")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, name := range []string{"Mayor", "mayor", " MAYOR ", "\tmAyOr\n"} {
		if e, ok := d.LookupName(name); !ok || e.ChatID != 1001 {
			t.Errorf("LookupName(%q) = (%+v, %v)", name, e, ok)
		}
	}

	// Unicode case folding, not ASCII lowering.
	if e, ok := d.LookupName("STRASSE"); !ok || e.ChatID != 1002 {
		t.Errorf("folded lookup = (%+v, %v)", e, ok)
	}

	// Near-miss names never match.
	for _, name := range []string{"Mayo", "Mayors", "May or", ""} {
		if _, ok := d.LookupName(name); ok {
			t.Errorf("LookupName(%q) matched", name)
		}
	}
}

func TestIsResponder(t *testing.T) {
	d, err := Parse("Mayor=1001")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !d.IsResponder(1001) {
		t.Errorf("configured chat id not recognized")
	}
	if d.IsResponder(9999) || d.IsResponder(0) {
		t.Errorf("unconfigured chat id recognized")
	}

	d.AdminChatID = 9999
	if !d.IsResponder(9999) {
		t.Errorf("admin chat id not recognized")
	}
}

func TestIsAdmin(t *testing.T) {
	d, err := Parse("Mayor=1001")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if d.IsAdmin(1001) || d.IsAdmin(0) {
		t.Errorf("admin recognized without configuration")
	}

	d.AdminChatID = 9999
	if !d.IsAdmin(9999) {
		t.Errorf("configured admin chat id not recognized")
	}
	if d.IsAdmin(1001) {
		t.Errorf("responder chat id treated as admin")
	}
}

func TestParse_ErrorMentionsEntry(t *testing.T) {
	_, err := Parse("Mayor=nope")
	if err == nil || !strings.Contains(err.Error(), "Mayor=nope") {
		t.Errorf("error should name the bad entry: %v", err)
	}
}
