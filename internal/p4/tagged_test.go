package p4

import (
	"testing"
	"time"
)

func TestParseTaggedSingleRecord(t *testing.T) {
	out := []byte("... ServerID commander.perforce.example\n" +
		"... serverAddress perforce.example.com:1666\n" +
		"... caseHandling sensitive\n" +
		"... unicode enabled\n")

	records := ParseTagged(out)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r["ServerID"] != "commander.perforce.example" {
		t.Errorf("ServerID = %q", r["ServerID"])
	}
	if r["caseHandling"] != "sensitive" {
		t.Errorf("caseHandling = %q", r["caseHandling"])
	}
}

func TestParseTaggedMultipleRecords(t *testing.T) {
	out := []byte("... change 102\n... user jdoe\n... desc Second change.\n" +
		"\n" +
		"... change 101\n... user sam\n... desc First change.\n")

	records := ParseTagged(out)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["change"] != "102" || records[1]["change"] != "101" {
		t.Errorf("records = %v", records)
	}
}

func TestParseTaggedMultilineValue(t *testing.T) {
	out := []byte("... change 7\n" +
		"... desc Fix the widget.\n" +
		"Also clean up the gadget.\n" +
		"\n" +
		"... change 6\n" +
		"... desc One-liner.\n")

	records := ParseTagged(out)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	want := "Fix the widget.\nAlso clean up the gadget."
	if records[0]["desc"] != want {
		t.Errorf("desc = %q, want %q", records[0]["desc"], want)
	}
}

func TestParseTaggedEllipsisInDescription(t *testing.T) {
	// A description line can start with "... " without being a field.
	out := []byte("... change 9\n" +
		"... user jdoe\n" +
		"... desc Steps to reproduce:\n" +
		"... run the tool\n" +
		"... watch it fail\n" +
		"... profit, see the ticket\n")

	records := ParseTagged(out)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	want := "Steps to reproduce:\n... run the tool\n... watch it fail\n... profit, see the ticket"
	if r["desc"] != want {
		t.Errorf("desc = %q, want %q", r["desc"], want)
	}
	if r["change"] != "9" || r["user"] != "jdoe" {
		t.Errorf("record = %v", r)
	}
}

func TestParseTaggedRepeatedFieldSplitsRecords(t *testing.T) {
	// No blank separator at all: the repeated field name must split.
	out := []byte("... change 2\n... change 1\n")
	records := ParseTagged(out)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestParseTaggedIndexedFields(t *testing.T) {
	out := []byte("... change 55\n" +
		"... user jdoe\n" +
		"... time 1609459200\n" +
		"... desc Touch two files.\n" +
		"... depotFile0 //depot/main/a.go\n" +
		"... action0 edit\n" +
		"... type0 text\n" +
		"... rev0 3\n" +
		"... depotFile1 //depot/main/b.sh\n" +
		"... action1 add\n" +
		"... type1 xtext\n" +
		"... rev1 1\n")

	records := ParseTagged(out)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	files, err := parseFileRevs(records[0])
	if err != nil {
		t.Fatalf("parseFileRevs: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].DepotPath != "//depot/main/a.go" || files[0].Action != ActionEdit || files[0].Rev != 3 {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].Type != "xtext" || files[1].Action != ActionAdd {
		t.Errorf("files[1] = %+v", files[1])
	}
}

func TestParseChangeRecord(t *testing.T) {
	r := Record{
		"change": "1234",
		"user":   "jdoe",
		"client": "jdoe-ws",
		"time":   "1609459200",
		"desc":   "A change.",
		"status": "submitted",
	}
	cl, err := parseChangeRecord(r)
	if err != nil {
		t.Fatalf("parseChangeRecord: %v", err)
	}
	if cl.Change != 1234 || cl.User != "jdoe" {
		t.Errorf("cl = %+v", cl)
	}
	if !cl.Time.Equal(time.Unix(1609459200, 0)) {
		t.Errorf("Time = %v", cl.Time)
	}
}

func TestParseChangeRecordErrors(t *testing.T) {
	if _, err := parseChangeRecord(Record{"user": "x"}); err == nil {
		t.Error("expected error for missing change number")
	}
	if _, err := parseChangeRecord(Record{"change": "abc"}); err == nil {
		t.Error("expected error for non-numeric change")
	}
	if _, err := parseChangeRecord(Record{"change": "1", "time": "soon"}); err == nil {
		t.Error("expected error for bad time")
	}
}

func TestFileActionIsDelete(t *testing.T) {
	tests := []struct {
		action FileAction
		want   bool
	}{
		{ActionDelete, true},
		{ActionMoveDel, true},
		{ActionPurge, true},
		{ActionAdd, false},
		{ActionEdit, false},
		{ActionBranch, false},
	}
	for _, tt := range tests {
		if got := tt.action.IsDelete(); got != tt.want {
			t.Errorf("%q.IsDelete() = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestPortHost(t *testing.T) {
	tests := []struct {
		port, want string
	}{
		{"perforce.example.com:1666", "perforce.example.com"},
		{"ssl:perforce.example.com:1666", "perforce.example.com"},
		{"tcp6:p4.internal:1666", "p4.internal"},
		{"1666", ""},
	}
	for _, tt := range tests {
		if got := portHost(tt.port); got != tt.want {
			t.Errorf("portHost(%q) = %q, want %q", tt.port, got, tt.want)
		}
	}
}
